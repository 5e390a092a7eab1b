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
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var recoveryTracer = otel.Tracer("genieverse.recovery")

// =============================================================================
// Recovered Payload
// =============================================================================

// RecoveryMethod tags how a payload was produced, so downstream consumers and
// logs can distinguish "no repair needed" from "repair applied".
type RecoveryMethod string

const (
	// RecoveryNone means the response was syntactically complete and parsed
	// directly, with no repair applied.
	RecoveryNone RecoveryMethod = "none"

	// RecoveryTruncationRepair means the response failed strict parsing and
	// was rebuilt from the complete records and metadata fields that arrived
	// intact.
	RecoveryTruncationRepair RecoveryMethod = "truncation_repair"
)

// RecoveredPayload is the always-valid result of recovering a raw response.
//
// Description:
//
//	Regardless of where the source text was cut off, a RecoveredPayload is
//	structured, parseable data: total information loss is possible (down to
//	zero records) but structural validity is never lost. IsComplete is false
//	whenever one or more trailing records were discarded.
//
// Thread Safety: Constructed fresh per call and never mutated afterwards.
// Safe to share across goroutines.
type RecoveredPayload struct {
	// Status is the backend's status field ("success", "error", ...) when it
	// arrived intact, empty otherwise.
	Status string `json:"status,omitempty"`

	// ChartKind is the backend's chart kind string, verbatim and unvalidated.
	// The chart normalizer owns validation.
	ChartKind string `json:"chart_type,omitempty"`

	// Meta holds every top-level metadata field (other than the data array)
	// that was syntactically complete: axis bindings, color binding, and any
	// historical-format variants. Truncated fields are dropped, not guessed.
	Meta map[string]any `json:"meta,omitempty"`

	// Records is the ordered sequence of complete data records.
	Records []DataRecord `json:"data"`

	// RecordCount is len(Records), surfaced for display and logging.
	RecordCount int `json:"record_count"`

	// IsComplete is false when any trailing record or input was discarded.
	IsComplete bool `json:"is_complete"`

	// RecoveryMethod distinguishes direct parsing from applied repair.
	RecoveryMethod RecoveryMethod `json:"recovery_method"`
}

// MetaString returns the named metadata field as a string, or "" when the
// field is absent or not a string.
func (p *RecoveredPayload) MetaString(key string) string {
	if p.Meta == nil {
		return ""
	}
	s, _ := p.Meta[key].(string)
	return s
}

// =============================================================================
// Repairer
// =============================================================================

// Repairer reconstructs a valid payload from a possibly-truncated response.
//
// Description:
//
//	A strict parse is attempted first; when it succeeds, the payload records
//	are identical to direct decoding and RecoveryMethod is "none". Otherwise
//	the repairer walks the top-level fields with a complete-or-discard rule
//	and attaches the record extractor's output verbatim.
//
//	Recovery never raises: the only surfaced condition is
//	ErrDataFieldNotFound, and even then the returned payload is valid.
//
// Thread Safety: Read-only after construction. Safe for concurrent use.
type Repairer struct {
	dataField string
	logger    *slog.Logger
}

// NewRepairer creates a Repairer for the given data array field name.
//
// Inputs:
//
//	dataField - Name of the array field holding records. "" defaults to "data".
//	logger - Logger for repair diagnostics. May be nil.
func NewRepairer(dataField string, logger *slog.Logger) *Repairer {
	if dataField == "" {
		dataField = "data"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{dataField: dataField, logger: logger}
}

// Recover produces a RecoveredPayload from raw response text.
//
// Description:
//
//	Total function over its input: any byte-level truncation of a valid
//	response yields a structurally valid payload whose RecordCount equals
//	the number of fully well-formed records before the cut. More input never
//	yields fewer recovered records.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	raw - Raw response text.
//
// Outputs:
//
//	*RecoveredPayload - Always non-nil and structurally valid.
//	error - ErrDataFieldNotFound when no data array exists in the input;
//	        nil otherwise. Truncation is not an error.
//
// Thread Safety: Safe for concurrent use.
func (r *Repairer) Recover(ctx context.Context, raw string) (*RecoveredPayload, error) {
	start := time.Now()
	_, span := recoveryTracer.Start(ctx, "recovery.Repairer.Recover")
	defer span.End()

	raw = stripEnvelope(raw)

	payload, err := r.recoverStrict(raw)
	if payload == nil {
		payload, err = r.recoverByScan(raw)
	}

	payload.RecordCount = len(payload.Records)

	recoveryRunsTotal.WithLabelValues(string(payload.RecoveryMethod)).Inc()
	recoveryRecordsRecovered.Observe(float64(payload.RecordCount))
	recoveryLatency.Observe(time.Since(start).Seconds())
	if !payload.IsComplete {
		recoveryTruncationsTotal.Inc()
	}

	span.SetAttributes(
		attribute.String("method", string(payload.RecoveryMethod)),
		attribute.Int("record_count", payload.RecordCount),
		attribute.Bool("is_complete", payload.IsComplete),
	)

	if payload.RecoveryMethod == RecoveryTruncationRepair {
		r.logger.Info("response repaired",
			slog.Int("record_count", payload.RecordCount),
			slog.Bool("is_complete", payload.IsComplete),
			slog.Int("input_bytes", len(raw)),
		)
	}
	return payload, err
}

// recoverStrict attempts normal JSON decoding of the whole input.
// Returns (nil, nil) when strict parsing is not possible, which
// hands control to the scan-based repair path.
func (r *Repairer) recoverStrict(raw string) (*RecoveredPayload, error) {
	var top map[string]any
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, nil
	}

	payload := &RecoveredPayload{
		Meta:           make(map[string]any, len(top)),
		IsComplete:     true,
		RecoveryMethod: RecoveryNone,
	}
	for k, v := range top {
		if k != r.dataField {
			payload.Meta[k] = v
		}
	}
	payload.Status = payload.MetaString("status")
	payload.ChartKind = chartKindFromMeta(payload.Meta)

	rawData, ok := top[r.dataField]
	if !ok {
		return payload, ErrDataFieldNotFound
	}
	arr, ok := rawData.([]any)
	if !ok {
		return payload, ErrDataFieldNotFound
	}
	for _, elem := range arr {
		if rec, ok := elem.(map[string]any); ok {
			payload.Records = append(payload.Records, DataRecord(rec))
		}
	}
	return payload, nil
}

// recoverByScan rebuilds the payload field by field after strict parsing
// failed. Each top-level metadata field is kept only when its value is
// independently parseable; the data array is handed to the record extractor.
func (r *Repairer) recoverByScan(raw string) (*RecoveredPayload, error) {
	payload := &RecoveredPayload{
		Meta:           make(map[string]any),
		RecoveryMethod: RecoveryTruncationRepair,
	}

	dataFound := false
	truncated := true

	pos := strings.IndexByte(raw, '{')
	if pos >= 0 {
		dataFound, truncated = r.scanTopLevel(raw, pos+1, payload)
	}

	if !dataFound {
		// Metadata before the array may have been malformed enough to stop
		// the field walk early; fall back to locating the array directly.
		if start, ok := findArrayStart(raw, r.dataField); ok {
			res := scanRecords(raw, start)
			payload.Records = res.Records
			truncated = res.TruncationDetected
			dataFound = true
		}
	}

	payload.Status = payload.MetaString("status")
	payload.ChartKind = chartKindFromMeta(payload.Meta)

	if !dataFound {
		payload.IsComplete = false
		return payload, ErrDataFieldNotFound
	}
	payload.IsComplete = !truncated
	return payload, nil
}

// scanTopLevel walks `"key": value` pairs from pos (just past the opening
// brace), applying the complete-or-discard rule per field. Returns whether
// the data array was found and whether its contents were truncated.
func (r *Repairer) scanTopLevel(raw string, pos int, payload *RecoveredPayload) (dataFound, truncated bool) {
	truncated = true

	for {
		pos = skipSpaceAndCommas(raw, pos)
		if pos >= len(raw) {
			return dataFound, truncated
		}
		if raw[pos] == '}' {
			return dataFound, truncated
		}
		if raw[pos] != '"' {
			return dataFound, truncated
		}

		keyEnd, complete := scanString(raw, pos)
		if !complete {
			return dataFound, truncated
		}
		key := raw[pos+1 : keyEnd-1]

		pos = skipSpace(raw, keyEnd)
		if pos >= len(raw) || raw[pos] != ':' {
			return dataFound, truncated
		}
		pos = skipSpace(raw, pos+1)
		if pos >= len(raw) {
			return dataFound, truncated
		}

		if key == r.dataField && raw[pos] == '[' {
			res := scanRecords(raw, pos+1)
			payload.Records = res.Records
			dataFound = true
			truncated = res.TruncationDetected
			if truncated {
				return dataFound, truncated
			}
			pos = res.ArrayEnd
			continue
		}

		var end int
		switch raw[pos] {
		case '{', '[', '"':
			end, complete = scanBalanced(raw, pos)
		default:
			end, complete = scanScalar(raw, pos)
		}
		if !complete {
			// Truncated metadata field: dropped, not guessed.
			r.logger.Debug("dropping incomplete metadata field",
				slog.String("field", key),
				slog.String("fragment", truncateForLog(raw[pos:], 40)),
			)
			return dataFound, truncated
		}

		var v any
		if err := json.Unmarshal([]byte(raw[pos:end]), &v); err != nil {
			return dataFound, truncated
		}
		payload.Meta[key] = v
		pos = end
	}
}

// chartKindFromMeta resolves the chart kind across historical response
// shapes. Older backends emitted "type"; current ones emit "chart_type".
func chartKindFromMeta(meta map[string]any) string {
	for _, key := range []string{"chart_type", "chartType", "type"} {
		if s, ok := meta[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// stripEnvelope removes the non-JSON wrapping some backends add around the
// payload: surrounding whitespace and markdown code fences.
func stripEnvelope(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		raw = raw[idx+1:]
	} else {
		raw = ""
	}
	if end := strings.LastIndex(raw, "```"); end >= 0 {
		raw = raw[:end]
	}
	return strings.TrimSpace(raw)
}
