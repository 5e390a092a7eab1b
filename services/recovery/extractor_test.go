// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"errors"
	"testing"
)

func TestExtractRecords_TruncatedMidRecord(t *testing.T) {
	raw := `{"data": [{"a":1,"b":2},{"a":3,"b":4},{"a":5,"b"`

	result, err := ExtractRecords(raw, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if !result.TruncationDetected {
		t.Error("expected truncation to be detected")
	}
	if got := result.Records[1]["a"]; got != float64(3) {
		t.Errorf("expected second record a=3, got %v", got)
	}
}

func TestExtractRecords_EmptyArray(t *testing.T) {
	result, err := ExtractRecords(`{"data": []}`, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("expected 0 records, got %d", len(result.Records))
	}
	if result.TruncationDetected {
		t.Error("empty array is complete, not truncated")
	}
}

func TestExtractRecords_FieldNotFound(t *testing.T) {
	_, err := ExtractRecords(`{"status": "success"}`, "data")
	if !errors.Is(err, ErrDataFieldNotFound) {
		t.Fatalf("expected ErrDataFieldNotFound, got %v", err)
	}
}

func TestExtractRecords_FieldNameInsideStringValue(t *testing.T) {
	// "data" appearing as a string value must not be mistaken for the key.
	raw := `{"note": "the data", "data": [{"x": 1}]}`

	result, err := ExtractRecords(raw, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
}

func TestExtractRecords_BracesInsideStrings(t *testing.T) {
	raw := `{"data": [{"label": "a{b}c", "v": 1}, {"label": "]}", "v": 2}]}`

	result, err := ExtractRecords(raw, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if result.TruncationDetected {
		t.Error("expected clean close")
	}
	if result.Records[0]["label"] != "a{b}c" {
		t.Errorf("brace-laden string mangled: %v", result.Records[0]["label"])
	}
}

func TestExtractRecords_EscapedQuoteInString(t *testing.T) {
	raw := `{"data": [{"name": "say \"hi\"", "v": 1}]}`

	result, err := ExtractRecords(raw, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if result.Records[0]["name"] != `say "hi"` {
		t.Errorf("escaped quote mangled: %v", result.Records[0]["name"])
	}
}

func TestExtractRecords_NestedObjects(t *testing.T) {
	raw := `{"data": [{"outer": {"inner": [1, 2]}, "v": 1}, {"v": 2}]}`

	result, err := ExtractRecords(raw, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
}

func TestExtractRecords_TruncatedInsideString(t *testing.T) {
	raw := `{"data": [{"Date": "2016-05-31", "Open": 551.0}, {"Date": "2016-05`

	result, err := ExtractRecords(raw, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if !result.TruncationDetected {
		t.Error("expected truncation to be detected")
	}
}

func TestExtractRecords_MalformedElementStopsScan(t *testing.T) {
	raw := `{"data": [{"v": 1}, not-json, {"v": 2}]}`

	result, err := ExtractRecords(raw, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected scan to stop at malformed element, got %d records", len(result.Records))
	}
	if !result.TruncationDetected {
		t.Error("expected unconsumed input to be flagged")
	}
}
