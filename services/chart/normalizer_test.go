// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chart

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/genieverse/services/config"
	"github.com/AleutianAI/genieverse/services/recovery"
)

func makePayload(kind string, meta map[string]any, rows ...recovery.DataRecord) *recovery.RecoveredPayload {
	return &recovery.RecoveredPayload{
		ChartKind:   kind,
		Meta:        meta,
		Records:     rows,
		RecordCount: len(rows),
		IsComplete:  true,
	}
}

func TestNormalize_BarChart(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("bar",
		map[string]any{"x": "region", "y": "revenue"},
		recovery.DataRecord{"region": "West", "revenue": 120.5},
		recovery.DataRecord{"region": "East", "revenue": 98.0},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.Kind != KindBar {
		t.Errorf("Kind = %q, want %q", desc.Kind, KindBar)
	}
	if desc.XField != "region" {
		t.Errorf("XField = %q, want region", desc.XField)
	}
	if len(desc.YFields) != 1 || desc.YFields[0] != "revenue" {
		t.Errorf("YFields = %v, want [revenue]", desc.YFields)
	}
	if len(desc.Rows) != 2 {
		t.Errorf("Rows = %d, want 2", len(desc.Rows))
	}
	if desc.Title != "Revenue by Region" {
		t.Errorf("Title = %q, want Revenue by Region", desc.Title)
	}
}

func TestNormalize_AliasBindingsResolveIdentically(t *testing.T) {
	n := NewNormalizer(nil, nil)
	rows := []recovery.DataRecord{
		{"month": "Jan", "sales": 10.0},
		{"month": "Feb", "sales": 12.0},
	}

	canonical := makePayload("line", map[string]any{"x": "month", "y": "sales"}, rows...)
	aliased := makePayload("line", map[string]any{"x_col": "month", "y_col": "sales"}, rows...)

	a, err := n.Normalize(context.Background(), canonical)
	if err != nil {
		t.Fatalf("canonical shape failed: %v", err)
	}
	b, err := n.Normalize(context.Background(), aliased)
	if err != nil {
		t.Fatalf("aliased shape failed: %v", err)
	}
	if a.XField != b.XField || a.YFields[0] != b.YFields[0] || a.Kind != b.Kind {
		t.Errorf("alias shape diverged: %+v vs %+v", a, b)
	}
}

func TestNormalize_MultiSeriesYList(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("line",
		map[string]any{"x": "day", "y": []any{"cpu", "memory"}},
		recovery.DataRecord{"day": "Mon", "cpu": 0.4, "memory": 0.7},
		recovery.DataRecord{"day": "Tue", "cpu": 0.5, "memory": 0.6},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(desc.YFields) != 2 || desc.YFields[0] != "cpu" || desc.YFields[1] != "memory" {
		t.Errorf("YFields = %v, want [cpu memory]", desc.YFields)
	}
}

func TestNormalize_CandlestickFullOHLC(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("candlestick",
		map[string]any{"x": "Date"},
		recovery.DataRecord{"Date": "2025-01-02", "open": 100.0, "high": 105.0, "low": 99.0, "close": 104.0},
		recovery.DataRecord{"Date": "2025-01-03", "open": 104.0, "high": 110.0, "low": 103.0, "close": 108.0},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.Kind != KindCandlestick {
		t.Fatalf("Kind = %q, want candlestick", desc.Kind)
	}
	want := []string{"open", "high", "low", "close"}
	if len(desc.YFields) != 4 {
		t.Fatalf("YFields = %v, want 4 OHLC fields", desc.YFields)
	}
	for i, f := range want {
		if desc.YFields[i] != f {
			t.Errorf("YFields[%d] = %q, want %q", i, desc.YFields[i], f)
		}
	}
}

func TestNormalize_CandlestickMissingLowRejected(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("candlestick",
		map[string]any{"x": "Date"},
		recovery.DataRecord{"Date": "2025-01-02", "Open": 100.0, "High": 105.0, "Close": 104.0},
		recovery.DataRecord{"Date": "2025-01-03", "Open": 104.0, "High": 110.0, "Close": 108.0},
	)

	_, err := n.Normalize(context.Background(), payload)
	if !errors.Is(err, ErrInsufficientFields) {
		t.Fatalf("err = %v, want ErrInsufficientFields", err)
	}
}

func TestNormalize_CandlestickWithoutOHLCDowngradesToLine(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("candlestick",
		map[string]any{"x": "Date"},
		recovery.DataRecord{"Date": "2025-01-02", "volume": 15000.0},
		recovery.DataRecord{"Date": "2025-01-03", "volume": 18000.0},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.Kind != KindLine {
		t.Errorf("Kind = %q, want line after downgrade", desc.Kind)
	}
	if len(desc.YFields) != 1 || desc.YFields[0] != "volume" {
		t.Errorf("YFields = %v, want [volume]", desc.YFields)
	}
}

func TestNormalize_PieRedundantColorIgnored(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("pie",
		map[string]any{"x": "category", "y": "count", "color": "category"},
		recovery.DataRecord{"category": "Books", "count": 12.0},
		recovery.DataRecord{"category": "Games", "count": 7.0},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.ColorField != "" || desc.ColorLiteral != "" {
		t.Errorf("color binding should be dropped, got field=%q literal=%q", desc.ColorField, desc.ColorLiteral)
	}
}

func TestNormalize_ColorFieldVersusLiteral(t *testing.T) {
	n := NewNormalizer(nil, nil)
	rows := []recovery.DataRecord{
		{"x_val": 1.0, "y_val": 2.0, "segment": "a"},
		{"x_val": 2.0, "y_val": 3.0, "segment": "b"},
	}

	fieldBound := makePayload("scatter", map[string]any{"x": "x_val", "y": "y_val", "color": "segment"}, rows...)
	desc, err := NewNormalizer(nil, nil).Normalize(context.Background(), fieldBound)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.ColorField != "segment" || desc.ColorLiteral != "" {
		t.Errorf("want ColorField=segment, got field=%q literal=%q", desc.ColorField, desc.ColorLiteral)
	}

	literalBound := makePayload("scatter", map[string]any{"x": "x_val", "y": "y_val", "color": "#4FC3F7"}, rows...)
	desc, err = n.Normalize(context.Background(), literalBound)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.ColorLiteral != "#4FC3F7" || desc.ColorField != "" {
		t.Errorf("want ColorLiteral=#4FC3F7, got field=%q literal=%q", desc.ColorField, desc.ColorLiteral)
	}
}

func TestNormalize_RowsMissingFieldsDropped(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("bar",
		map[string]any{"x": "region", "y": "revenue"},
		recovery.DataRecord{"region": "West", "revenue": 120.5},
		recovery.DataRecord{"region": "North"},
		recovery.DataRecord{"region": "East", "revenue": "not a number"},
		recovery.DataRecord{"region": "South", "revenue": 55.0},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(desc.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(desc.Rows))
	}
	for i, row := range desc.Rows {
		if _, ok := row[desc.XField]; !ok {
			t.Errorf("row %d missing x field %q", i, desc.XField)
		}
		for _, y := range desc.YFields {
			if _, ok := row[y]; !ok {
				t.Errorf("row %d missing y field %q", i, y)
			}
		}
	}
}

func TestNormalize_AllRowsDroppedRejected(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("bar",
		map[string]any{"x": "region", "y": "revenue"},
		recovery.DataRecord{"region": "West"},
		recovery.DataRecord{"region": "East"},
	)

	_, err := n.Normalize(context.Background(), payload)
	if !errors.Is(err, ErrInsufficientFields) {
		t.Fatalf("err = %v, want ErrInsufficientFields", err)
	}
}

func TestNormalize_UnknownKindRejected(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("treemap",
		map[string]any{"x": "a", "y": "b"},
		recovery.DataRecord{"a": "x", "b": 1.0},
	)

	_, err := n.Normalize(context.Background(), payload)
	if !errors.Is(err, ErrUnsupportedChartKind) {
		t.Fatalf("err = %v, want ErrUnsupportedChartKind", err)
	}
}

func TestNormalize_NoRowsRejected(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("line", map[string]any{"x": "a", "y": "b"})

	_, err := n.Normalize(context.Background(), payload)
	if !errors.Is(err, ErrInsufficientFields) {
		t.Fatalf("err = %v, want ErrInsufficientFields", err)
	}
}

func TestNormalize_AutoDetectBindings(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("line", nil,
		recovery.DataRecord{"Date": "2025-01-02", "close_price": 104.0},
		recovery.DataRecord{"Date": "2025-01-03", "close_price": 108.0},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.XField != "Date" {
		t.Errorf("XField = %q, want Date", desc.XField)
	}
	if len(desc.YFields) != 1 || desc.YFields[0] != "close_price" {
		t.Errorf("YFields = %v, want [close_price]", desc.YFields)
	}
}

func TestParseKind_Tolerant(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"bar", KindBar, true},
		{"Stacked Bar Chart", KindBar, true},
		{"LINE", KindLine, true},
		{"candlestick", KindCandlestick, true},
		{"pie chart", KindPie, true},
		{"scatter plot", KindScatter, true},
		{"heatmap", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseKind(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseKind(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFormatFieldName(t *testing.T) {
	cases := map[string]string{
		"total_revenue": "Total Revenue",
		"user_id":       "User ID",
		"api_calls":     "API Calls",
		"region":        "Region",
	}
	for in, want := range cases {
		if got := formatFieldName(in); got != want {
			t.Errorf("formatFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_DefaultColorForSingleSeries(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("bar",
		map[string]any{"x": "region", "y": "revenue"},
		recovery.DataRecord{"region": "West", "revenue": 120.5},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.ColorLiteral != config.DefaultChartColor {
		t.Errorf("ColorLiteral = %q, want configured default %q", desc.ColorLiteral, config.DefaultChartColor)
	}
	if len(desc.SeriesColors) != 0 {
		t.Errorf("SeriesColors = %v, want empty for a single series", desc.SeriesColors)
	}
}

func TestNormalize_PaletteCyclesAcrossSeries(t *testing.T) {
	cfg := &config.ChartConfig{
		DefaultColor:  "#000000",
		MaxRenderRows: 100,
		Palette:       []string{"#111111", "#222222"},
	}
	n := NewNormalizer(cfg, nil)
	payload := makePayload("line",
		map[string]any{"x": "day", "y": []any{"cpu", "memory", "disk"}},
		recovery.DataRecord{"day": "Mon", "cpu": 0.4, "memory": 0.7, "disk": 0.2},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := []string{"#111111", "#222222", "#111111"}
	if len(desc.SeriesColors) != len(want) {
		t.Fatalf("SeriesColors = %v, want %v", desc.SeriesColors, want)
	}
	for i, c := range want {
		if desc.SeriesColors[i] != c {
			t.Errorf("SeriesColors[%d] = %q, want %q", i, desc.SeriesColors[i], c)
		}
	}
	if desc.ColorLiteral != "" {
		t.Errorf("ColorLiteral = %q, want empty when palette colors apply", desc.ColorLiteral)
	}
}

func TestNormalize_DeclaredColorSuppressesDefaults(t *testing.T) {
	n := NewNormalizer(nil, nil)
	payload := makePayload("bar",
		map[string]any{"x": "region", "y": "revenue", "color": "#AA0000"},
		recovery.DataRecord{"region": "West", "revenue": 120.5},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if desc.ColorLiteral != "#AA0000" {
		t.Errorf("ColorLiteral = %q, want the declared binding", desc.ColorLiteral)
	}
}

func TestNormalize_RenderRowCap(t *testing.T) {
	cfg := &config.ChartConfig{DefaultColor: config.DefaultChartColor, MaxRenderRows: 2}
	n := NewNormalizer(cfg, nil)
	payload := makePayload("bar",
		map[string]any{"x": "region", "y": "revenue"},
		recovery.DataRecord{"region": "North", "revenue": 1.0},
		recovery.DataRecord{"region": "South", "revenue": 2.0},
		recovery.DataRecord{"region": "East", "revenue": 3.0},
		recovery.DataRecord{"region": "West", "revenue": 4.0},
	)

	desc, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(desc.Rows) != 2 {
		t.Errorf("Rows = %d, want capped at 2", len(desc.Rows))
	}
	if !desc.RowsTruncated {
		t.Error("RowsTruncated = false, want true when the cap applies")
	}
	if desc.Rows[0]["region"] != "North" || desc.Rows[1]["region"] != "South" {
		t.Errorf("cap must keep the leading rows, got %v", desc.Rows)
	}
}
