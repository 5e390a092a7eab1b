// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

// =============================================================================
// Response Text Processing
// =============================================================================
//
// Backend responses carry their human-readable content in whichever field
// the flow author picked, and database errors arrive as raw driver output.
// The helpers here reduce both to text fit for a chat transcript.

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/genieverse/services/dashboard"
	"github.com/AleutianAI/genieverse/services/recovery"
)

// displayFields are the wrapper fields that commonly hold response text, in
// lookup order.
var displayFields = []string{
	"response", "message", "text", "content", "answer",
	"result", "output", "reply", "description",
}

// ExtractDisplayText pulls the human-readable content out of a recovered
// payload's metadata.
//
// # Description
//
// Tries the well-known text fields directly, then one level of embedded
// JSON (a wrapper field whose string value is itself a JSON object with a
// text field). Returns "" when nothing readable is found.
func ExtractDisplayText(payload *recovery.RecoveredPayload) string {
	if payload == nil {
		return ""
	}
	if s := displayTextFromMap(payload.Meta); s != "" {
		return s
	}

	// One level of embedded JSON.
	for _, field := range displayFields {
		s, ok := payload.Meta[field].(string)
		if !ok {
			continue
		}
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			continue
		}
		if t := displayTextFromMap(inner); t != "" {
			return t
		}
	}
	return ""
}

func displayTextFromMap(m map[string]any) string {
	for _, field := range displayFields {
		if s, ok := m[field].(string); ok {
			if t := strings.TrimSpace(s); t != "" && !strings.HasPrefix(t, "{") {
				return t
			}
		}
	}
	return ""
}

// FormatChartMessage builds the transcript line announcing a successful
// structured response. Recovered-but-truncated payloads say so: silently
// presenting a partial dataset as complete misleads the user.
func FormatChartMessage(payload *recovery.RecoveredPayload) string {
	var msg string
	switch {
	case payload.ChartKind != "" && payload.RecordCount > 0:
		msg = fmt.Sprintf("Generated %s chart with %d data points.", payload.ChartKind, payload.RecordCount)
	case payload.RecordCount > 0:
		msg = fmt.Sprintf("Retrieved %d data records.", payload.RecordCount)
	default:
		msg = "Query executed successfully."
	}
	if !payload.IsComplete && payload.RecordCount > 0 {
		msg += fmt.Sprintf(" The response was cut off; showing the %d complete records that were recovered.", payload.RecordCount)
	}
	return msg
}

// FormatDashboardMessage builds the transcript line for a created dashboard.
func FormatDashboardMessage(dash *dashboard.Dashboard) string {
	return fmt.Sprintf("Created dashboard %q with %d charts (id %s).", dash.Title, len(dash.Charts), dash.ID)
}

// IsErrorPayload reports whether a recovered payload describes a backend
// error rather than data.
func IsErrorPayload(payload *recovery.RecoveredPayload) bool {
	if payload == nil {
		return false
	}
	if payload.Status == "error" {
		return true
	}
	_, hasErr := payload.Meta["error"]
	return hasErr
}

// ErrorMessage extracts and cleans the error text from an error payload.
func ErrorMessage(payload *recovery.RecoveredPayload) string {
	raw := payload.MetaString("error")
	if raw == "" {
		raw = payload.MetaString("message")
	}
	if raw == "" {
		raw = "Unknown error occurred."
	}
	return CleanErrorMessage(raw)
}

// CleanErrorMessage turns raw backend or database error text into something
// a user can act on.
//
// # Description
//
// Database errors arrive as multi-line driver dumps with SQLSTATE codes and
// bracketed error classes. The cleanup keeps the leading human sentence,
// strips the technical markers, and replaces well-known failure classes
// with a plain-language explanation.
func CleanErrorMessage(errorText string) string {
	if strings.Contains(errorText, "TABLE_OR_VIEW_NOT_FOUND") {
		if msg := beforeMarker(errorText, "SQLSTATE"); msg != "" {
			return msg
		}
		return "The requested data table was not found. Please check that the data exists for the requested period."
	}
	if strings.Contains(errorText, "SQLSTATE") {
		if msg := beforeMarker(errorText, "SQLSTATE"); msg != "" {
			return msg
		}
	}
	if strings.Contains(errorText, "cannot be found") {
		return "The requested data source cannot be found. Please verify the name and date range."
	}
	if strings.Contains(errorText, "Failed to") || strings.Contains(errorText, "Error:") {
		if i := strings.IndexByte(errorText, '\n'); i > 0 {
			return strings.TrimSpace(errorText[:i])
		}
	}

	msg := strings.TrimSpace(errorText)
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		msg = "An error occurred while processing the request."
	}
	return msg
}

// beforeMarker returns the cleaned text preceding marker, "" when the
// marker is absent or nothing useful precedes it.
func beforeMarker(text, marker string) string {
	head, _, found := strings.Cut(text, marker)
	if !found {
		return ""
	}
	head = strings.ReplaceAll(head, "[TABLE_OR_VIEW_NOT_FOUND]", "")
	head = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(head), ".([,"))
	return strings.TrimSpace(head)
}
