// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chart normalizes recovered analytics payloads into one canonical
// chart description consumed by the renderer.
//
// The backend has shipped several response shapes over time: axis bindings
// named x or x_col, y as a single field name or a list, color as a field
// name or a literal color string. The normalizer maps all of them onto a
// single ChartDescription through a declarative alias table instead of
// per-shape branching.
package chart

import (
	"errors"
	"strings"

	"github.com/AleutianAI/genieverse/services/recovery"
)

// Kind is the visualization family. It determines the required field shape.
type Kind string

const (
	KindBar         Kind = "bar"
	KindPie         Kind = "pie"
	KindLine        Kind = "line"
	KindScatter     Kind = "scatter"
	KindCandlestick Kind = "candlestick"
)

// Kinds lists every supported chart kind.
var Kinds = []Kind{KindBar, KindPie, KindLine, KindScatter, KindCandlestick}

var (
	// ErrUnsupportedChartKind reports a chart kind string that matches no
	// known kind. The chart is not rendered; any text portion of the
	// response is still shown.
	ErrUnsupportedChartKind = errors.New("unsupported chart kind")

	// ErrInsufficientFields reports that a chart kind's structural
	// requirements cannot be satisfied after dropping incomplete rows.
	ErrInsufficientFields = errors.New("insufficient fields for chart kind")
)

// Description is the canonical chart-description record consumed by the
// renderer. Every field named by XField and YFields exists in every row of
// Rows; rows that were missing one were excluded during normalization.
//
// Immutable once produced. Safe to share across goroutines.
type Description struct {
	// Kind is the validated chart kind.
	Kind Kind `json:"kind"`

	// Title is a generated human-readable title ("Revenue by Region").
	Title string `json:"title"`

	// Rows is the usable row set. Never empty.
	Rows []recovery.DataRecord `json:"rows"`

	// XField is the x-axis (or category) binding.
	XField string `json:"x_field"`

	// YFields holds one or more y-series bindings. Multi-element for
	// multi-series charts; exactly four (OHLC order) for candlesticks.
	YFields []string `json:"y_fields"`

	// ColorField names a row field driving per-point color, when the color
	// binding resolved to a field. Empty otherwise.
	ColorField string `json:"color_field,omitempty"`

	// ColorLiteral is a fixed color value ("#4FC3F7") when the color
	// binding did not name a row field. Empty otherwise. When no color
	// binding resolved at all, this carries the configured default color
	// for single-series charts.
	ColorLiteral string `json:"color_literal,omitempty"`

	// SeriesColors assigns one palette color per y-series when the payload
	// declared no color binding and the chart has multiple series. Empty
	// when ColorField or ColorLiteral is set.
	SeriesColors []string `json:"series_colors,omitempty"`

	// RowsTruncated is true when Rows was cut at the configured render cap.
	RowsTruncated bool `json:"rows_truncated,omitempty"`
}

// ParseKind maps a free-form chart kind string onto a Kind. Matching is
// case-insensitive and tolerant of qualifiers ("stacked bar", "line chart").
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	for _, k := range Kinds {
		if strings.Contains(s, string(k)) {
			return k, true
		}
	}
	return "", false
}
