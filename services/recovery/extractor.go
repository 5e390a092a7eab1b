// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recovery turns possibly-truncated analytics responses into
// guaranteed-valid structured payloads.
//
// The analytics backend streams chart JSON over a transport that can cut the
// body off at any byte — mid-object, mid-array, mid-string. Instead of
// treating a cut-off body as a parse error, this package extracts every
// record that arrived intact and reports how much was lost. Truncation is a
// normal, always-successful outcome here, not a failure.
package recovery

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"
)

// DataRecord is one row of chartable data: a flat mapping of field name to
// scalar value (string, number, bool, or date-like string).
type DataRecord map[string]any

// ErrDataFieldNotFound reports that the expected data array field never
// appears in the response text. This is a recoverable "no chartable data"
// condition, distinct from truncation.
var ErrDataFieldNotFound = errors.New("data array field not found in response")

// ExtractResult is the output of ExtractRecords.
type ExtractResult struct {
	// Records holds every record that was syntactically complete and
	// independently parseable, in input order. May be empty.
	Records []DataRecord

	// TruncationDetected is true when the input ended inside an incomplete
	// record, or when unparseable input remained after the last complete
	// record. A cleanly closed array yields false.
	TruncationDetected bool

	// ArrayEnd is the index just past the closing bracket of the data array
	// when the array closed cleanly, or len(input) otherwise. Used by the
	// repairer to resume metadata parsing after the array.
	ArrayEnd int
}

// ExtractRecords scans raw response text for the named array field and
// delimits successive top-level object literals inside it.
//
// Description:
//
//	Locates `"<field>" : [` with an escape-aware scan (the field name may
//	also appear as a string value; only a key position followed by a colon
//	and an opening bracket counts). Each candidate object is delimited by
//	brace/bracket depth counting that honors quoted-string escaping, so
//	braces inside string values never confuse the depth. A candidate is
//	emitted only if it parses as a complete JSON object on its own; the scan
//	stops at the first malformed or incomplete candidate and never emits a
//	partial record.
//
// Inputs:
//
//	raw - Raw response text, possibly truncated at an arbitrary byte.
//	field - Name of the data array field (typically "data").
//
// Outputs:
//
//	*ExtractResult - Ordered records plus truncation flag. Never nil on success.
//	error - ErrDataFieldNotFound when the array field is absent. No other errors.
//
// Thread Safety: Stateless. Safe for concurrent use.
func ExtractRecords(raw, field string) (*ExtractResult, error) {
	start, ok := findArrayStart(raw, field)
	if !ok {
		return nil, ErrDataFieldNotFound
	}
	return scanRecords(raw, start), nil
}

// findArrayStart returns the index just past the opening bracket of the
// array keyed by field, or false when no such key/bracket pair exists.
//
// The scan tracks string state so a brace-laden string value cannot be
// mistaken for a key, and so occurrences of the field name inside other
// string values are skipped.
func findArrayStart(raw, field string) (int, bool) {
	i := 0
	for i < len(raw) {
		if raw[i] != '"' {
			i++
			continue
		}

		// Delimit the quoted string starting at i.
		end, complete := scanString(raw, i)
		if !complete {
			return 0, false // input ends inside a string; no key follows
		}
		token := raw[i+1 : end-1]
		i = end

		if token != field {
			continue
		}

		// A key is followed by optional whitespace, a colon, optional
		// whitespace, and for our purposes an opening bracket.
		j := skipSpace(raw, i)
		if j >= len(raw) || raw[j] != ':' {
			continue
		}
		j = skipSpace(raw, j+1)
		if j >= len(raw) || raw[j] != '[' {
			continue
		}
		return j + 1, true
	}
	return 0, false
}

// scanRecords walks the array body starting just past '[' and emits each
// complete object literal.
func scanRecords(raw string, pos int) *ExtractResult {
	result := &ExtractResult{ArrayEnd: len(raw)}

	for {
		pos = skipSpaceAndCommas(raw, pos)
		if pos >= len(raw) {
			// Input ended inside the array: trailing records may be lost.
			result.TruncationDetected = true
			return result
		}
		if raw[pos] == ']' {
			// Clean close. "data": [] lands here with zero records.
			result.ArrayEnd = pos + 1
			return result
		}
		if raw[pos] != '{' {
			// Malformed element. Stop without guessing.
			result.TruncationDetected = true
			return result
		}

		end, complete := scanBalanced(raw, pos)
		if !complete {
			result.TruncationDetected = true
			return result
		}

		candidate := raw[pos:end]
		var rec DataRecord
		if err := json.Unmarshal([]byte(candidate), &rec); err != nil {
			// Balanced but not valid JSON: stop at the first bad record.
			result.TruncationDetected = true
			return result
		}
		result.Records = append(result.Records, rec)
		pos = end
	}
}

// scanBalanced delimits one JSON value starting at pos, where raw[pos] is
// '{', '[', or '"'. Returns the index just past the value and whether the
// value closed before the input ended.
func scanBalanced(raw string, pos int) (end int, complete bool) {
	if raw[pos] == '"' {
		return scanString(raw, pos)
	}

	depth := 0
	inString := false
	escaped := false
	for i := pos; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return len(raw), false
}

// scanString delimits a quoted string starting at the opening quote.
// Returns the index just past the closing quote.
func scanString(raw string, pos int) (end int, complete bool) {
	escaped := false
	for i := pos + 1; i < len(raw); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch raw[i] {
		case '\\':
			escaped = true
		case '"':
			return i + 1, true
		}
	}
	return len(raw), false
}

// scanScalar delimits an unquoted scalar (number, true, false, null)
// starting at pos. A scalar that runs to the end of input is reported as
// incomplete because a truncation point inside "123.4" or "fal" is
// indistinguishable from a complete value.
func scanScalar(raw string, pos int) (end int, complete bool) {
	i := pos
	for i < len(raw) {
		c := raw[i]
		if c == ',' || c == '}' || c == ']' || unicode.IsSpace(rune(c)) {
			return i, true
		}
		i++
	}
	return i, false
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && unicode.IsSpace(rune(s[pos])) {
		pos++
	}
	return pos
}

func skipSpaceAndCommas(s string, pos int) int {
	for pos < len(s) && (s[pos] == ',' || unicode.IsSpace(rune(s[pos]))) {
		pos++
	}
	return pos
}

// truncateForLog shortens a string for structured log fields.
func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
