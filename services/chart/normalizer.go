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
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/genieverse/services/config"
	"github.com/AleutianAI/genieverse/services/recovery"
)

var chartTracer = otel.Tracer("genieverse.chart")

// ===== Alias and Shape Tables =====

// bindingAliases maps each canonical axis binding to the historical field
// names the backend has used for it, in lookup order. New backend shapes are
// supported by adding an alias here, not by adding branches.
var bindingAliases = map[string][]string{
	"x":     {"x", "x_col", "x_column", "x_axis"},
	"y":     {"y", "y_col", "y_columns", "y_axis"},
	"color": {"color", "color_col", "colour"},
}

// dateFieldCandidates are checked in order when no x binding is declared.
// Mirrors the column names the analytics backend emits for time series.
var dateFieldCandidates = []string{"Date", "date", "time", "Time", "timestamp", "Timestamp"}

// ohlcFields are the y-series a candlestick requires, in canonical order.
// Matching against row fields is case-insensitive.
var ohlcFields = []string{"Open", "High", "Low", "Close"}

// shapeRule captures a kind's structural requirements.
type shapeRule struct {
	// maxY caps the y-series count; 0 means unbounded.
	maxY int

	// categoryX marks x as a category binding rather than an axis (pie).
	categoryX bool
}

var shapeRules = map[Kind]shapeRule{
	KindBar:         {},
	KindLine:        {},
	KindScatter:     {},
	KindPie:         {maxY: 1, categoryX: true},
	KindCandlestick: {},
}

// ===== Normalizer =====

// Normalizer validates recovered payloads against the shape table and emits
// canonical chart descriptions.
//
// # Thread Safety
//
// Stateless after construction; safe for concurrent use.
type Normalizer struct {
	cfg    *config.ChartConfig
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer.
//
// # Inputs
//   - cfg: Renderer defaults (colors, row cap). Nil falls back to the
//     built-in defaults with an empty palette.
//   - logger: Structured logger. Nil falls back to slog.Default().
func NewNormalizer(cfg *config.ChartConfig, logger *slog.Logger) *Normalizer {
	if cfg == nil {
		cfg = &config.ChartConfig{
			DefaultColor:  config.DefaultChartColor,
			MaxRenderRows: config.DefaultMaxRenderRows,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize converts a recovered payload into a canonical chart description.
//
// # Description
//
// Resolves the chart kind and axis bindings from the payload metadata via
// the alias table, auto-detects missing bindings from the row data, drops
// rows missing any required field, and validates the surviving shape against
// the kind's rule. Candlestick payloads whose rows carry none of the OHLC
// fields are downgraded to a line chart over the first numeric field;
// payloads with a partial OHLC set are rejected as corrupt.
//
// # Inputs
//   - ctx: Context for tracing. Normalization itself never blocks.
//   - payload: A recovered payload. Must be non-nil.
//
// # Outputs
//   - *Description: The canonical chart description. Nil on error.
//   - error: ErrUnsupportedChartKind for an unknown kind string,
//     ErrInsufficientFields when no usable shape can be formed. Both carry
//     wrapped detail via fmt.Errorf.
func (n *Normalizer) Normalize(ctx context.Context, payload *recovery.RecoveredPayload) (*Description, error) {
	_, span := chartTracer.Start(ctx, "chart.Normalize",
		trace.WithAttributes(
			attribute.String("chart.kind_raw", payload.ChartKind),
			attribute.Int("chart.rows_in", len(payload.Records)),
		))
	defer span.End()

	desc, err := n.normalize(payload)
	if err != nil {
		span.SetAttributes(attribute.String("chart.outcome", "rejected"))
		normalizeTotal.WithLabelValues(string(kindLabel(payload.ChartKind)), "rejected").Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.String("chart.outcome", "normalized"),
		attribute.String("chart.kind", string(desc.Kind)),
		attribute.Int("chart.rows_out", len(desc.Rows)),
	)
	normalizeTotal.WithLabelValues(string(desc.Kind), "normalized").Inc()
	rowsDropped.Observe(float64(len(payload.Records) - len(desc.Rows)))
	return desc, nil
}

func (n *Normalizer) normalize(payload *recovery.RecoveredPayload) (*Description, error) {
	kind, err := n.resolveKind(payload)
	if err != nil {
		return nil, err
	}
	if len(payload.Records) == 0 {
		return nil, fmt.Errorf("%w: %s chart has no data rows", ErrInsufficientFields, kind)
	}

	fields := fieldUniverse(payload.Records)
	xField := resolveBinding(payload, "x")
	yFields := resolveYBinding(payload)
	colorBinding := resolveBinding(payload, "color")

	if kind == KindCandlestick {
		kind, xField, yFields, err = n.resolveCandlestick(fields, xField)
		if err != nil {
			return nil, err
		}
	} else {
		if xField == "" {
			xField = detectXField(fields)
		}
		if len(yFields) == 0 {
			yFields = detectYFields(payload.Records, fields, kind, xField)
		}
	}
	if xField == "" || len(yFields) == 0 {
		return nil, fmt.Errorf("%w: %s chart needs an x binding and at least one y series", ErrInsufficientFields, kind)
	}

	rule := shapeRules[kind]
	if rule.maxY > 0 && len(yFields) > rule.maxY {
		n.logger.Debug("Trimming excess y-series for chart kind",
			slog.String("kind", string(kind)),
			slog.Int("declared", len(yFields)),
			slog.Int("max", rule.maxY))
		yFields = yFields[:rule.maxY]
	}

	// A pie color binding identical to the category binding is redundant:
	// slices are already colored by category.
	if rule.categoryX && colorBinding == xField {
		colorBinding = ""
	}

	rows := filterRows(payload.Records, xField, yFields)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no row carries all of x=%q y=%v", ErrInsufficientFields, xField, yFields)
	}
	if len(rows) < len(payload.Records) {
		n.logger.Debug("Dropped incomplete chart rows",
			slog.String("kind", string(kind)),
			slog.Int("dropped", len(payload.Records)-len(rows)),
			slog.Int("kept", len(rows)))
	}

	rowsTruncated := false
	if n.cfg.MaxRenderRows > 0 && len(rows) > n.cfg.MaxRenderRows {
		n.logger.Warn("Chart exceeds render row cap; truncating",
			slog.String("kind", string(kind)),
			slog.Int("rows", len(rows)),
			slog.Int("cap", n.cfg.MaxRenderRows))
		rows = rows[:n.cfg.MaxRenderRows]
		rowsTruncated = true
	}

	desc := &Description{
		Kind:          kind,
		Title:         generateTitle(kind, xField, yFields),
		Rows:          rows,
		XField:        xField,
		YFields:       yFields,
		RowsTruncated: rowsTruncated,
	}
	n.applyColors(desc, colorBinding, fields, rule)
	return desc, nil
}

// applyColors resolves the color binding, falling back to the configured
// defaults when the payload declared none. Pie charts get no fallback: the
// renderer colors slices by category.
func (n *Normalizer) applyColors(desc *Description, colorBinding string, fields map[string]bool, rule shapeRule) {
	switch {
	case colorBinding != "" && fields[colorBinding]:
		desc.ColorField = colorBinding
	case colorBinding != "":
		desc.ColorLiteral = colorBinding
	case rule.categoryX:
	case len(desc.YFields) == 1:
		desc.ColorLiteral = n.cfg.DefaultColor
	default:
		colors := make([]string, len(desc.YFields))
		for i := range desc.YFields {
			colors[i] = n.cfg.SeriesColor(i)
		}
		desc.SeriesColors = colors
	}
}

// resolveKind maps the payload's declared kind onto a Kind, auto-detecting
// from the data shape when no kind was declared.
func (n *Normalizer) resolveKind(payload *recovery.RecoveredPayload) (Kind, error) {
	raw := payload.ChartKind
	if strings.TrimSpace(raw) == "" {
		kind := detectKindFromData(payload.Records)
		n.logger.Debug("No chart kind declared; detected from data shape",
			slog.String("kind", string(kind)))
		return kind, nil
	}
	kind, ok := ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChartKind, raw)
	}
	return kind, nil
}

// resolveCandlestick validates the OHLC shape.
//
// All four OHLC fields present: candlestick over them in canonical order.
// None present: the data is plainly not OHLC-shaped, so downgrade to a line
// over the first numeric field. A partial set means the series itself is
// corrupt, and is rejected rather than silently re-plotted.
func (n *Normalizer) resolveCandlestick(fields map[string]bool, xField string) (Kind, string, []string, error) {
	matched := make([]string, 0, len(ohlcFields))
	missing := make([]string, 0, len(ohlcFields))
	for _, want := range ohlcFields {
		if actual, ok := findFieldFold(fields, want); ok {
			matched = append(matched, actual)
		} else {
			missing = append(missing, want)
		}
	}
	if xField == "" {
		xField = detectXField(fields)
	}

	switch {
	case len(missing) == 0:
		return KindCandlestick, xField, matched, nil
	case len(matched) == 0:
		// Not OHLC data at all. Fall back to a plain line chart if any
		// numeric-looking field exists besides x.
		for _, f := range sortedFields(fields) {
			if f != xField && !isDateField(f) {
				n.logger.Warn("Candlestick requested without OHLC fields; downgrading to line chart",
					slog.String("y_field", f))
				return KindLine, xField, []string{f}, nil
			}
		}
		return "", "", nil, fmt.Errorf("%w: candlestick data has no plottable field", ErrInsufficientFields)
	default:
		return "", "", nil, fmt.Errorf("%w: candlestick data missing %s", ErrInsufficientFields, strings.Join(missing, ", "))
	}
}

// ===== Binding Resolution =====

// resolveBinding returns the first alias of binding present in the payload
// metadata with a non-empty string value.
func resolveBinding(payload *recovery.RecoveredPayload, binding string) string {
	for _, alias := range bindingAliases[binding] {
		if v := payload.MetaString(alias); v != "" {
			return v
		}
	}
	return ""
}

// resolveYBinding resolves the y binding, which may be a single field name
// or a list of field names.
func resolveYBinding(payload *recovery.RecoveredPayload) []string {
	for _, alias := range bindingAliases["y"] {
		v, ok := payload.Meta[alias]
		if !ok {
			continue
		}
		switch y := v.(type) {
		case string:
			if y != "" {
				return []string{y}
			}
		case []any:
			out := make([]string, 0, len(y))
			for _, item := range y {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// detectXField picks an x binding from the row fields: a known date-like
// field if present, otherwise the first field in sorted order.
func detectXField(fields map[string]bool) string {
	for _, cand := range dateFieldCandidates {
		if fields[cand] {
			return cand
		}
	}
	sorted := sortedFields(fields)
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0]
}

// detectYFields picks y bindings from the numeric fields of the data,
// excluding the x binding. Scatter keeps up to two series; other kinds one.
func detectYFields(rows []recovery.DataRecord, fields map[string]bool, kind Kind, xField string) []string {
	limit := 1
	if kind == KindScatter {
		limit = 2
	}
	var out []string
	for _, f := range sortedFields(fields) {
		if f == xField || isDateField(f) {
			continue
		}
		if !anyNumeric(rows, f) {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out
}

// detectKindFromData infers a kind when none was declared: OHLC-shaped data
// becomes a candlestick, two or more numeric fields a scatter, anything else
// a line.
func detectKindFromData(rows []recovery.DataRecord) Kind {
	fields := fieldUniverse(rows)
	ohlc := 0
	for _, want := range ohlcFields {
		if _, ok := findFieldFold(fields, want); ok {
			ohlc++
		}
	}
	if ohlc == len(ohlcFields) {
		return KindCandlestick
	}
	numeric := 0
	for f := range fields {
		if anyNumeric(rows, f) {
			numeric++
		}
	}
	if numeric >= 2 {
		return KindScatter
	}
	return KindLine
}

// ===== Row Filtering =====

// filterRows keeps rows that carry the x field and a numeric value for every
// y field. Rows are never mutated; the result aliases the input records.
func filterRows(rows []recovery.DataRecord, xField string, yFields []string) []recovery.DataRecord {
	out := make([]recovery.DataRecord, 0, len(rows))
rowLoop:
	for _, row := range rows {
		if _, ok := row[xField]; !ok {
			continue
		}
		for _, y := range yFields {
			if !isNumeric(row[y]) {
				continue rowLoop
			}
		}
		out = append(out, row)
	}
	return out
}

// ===== Field Helpers =====

// fieldUniverse collects every field name appearing in any row.
func fieldUniverse(rows []recovery.DataRecord) map[string]bool {
	fields := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			fields[k] = true
		}
	}
	return fields
}

func sortedFields(fields map[string]bool) []string {
	out := make([]string, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// findFieldFold locates a field by case-insensitive name, returning the
// actual field name as it appears in the data.
func findFieldFold(fields map[string]bool, name string) (string, bool) {
	if fields[name] {
		return name, true
	}
	for f := range fields {
		if strings.EqualFold(f, name) {
			return f, true
		}
	}
	return "", false
}

func isDateField(name string) bool {
	for _, cand := range dateFieldCandidates {
		if name == cand {
			return true
		}
	}
	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32:
		return true
	}
	return false
}

// anyNumeric reports whether field holds a numeric value in at least one row.
func anyNumeric(rows []recovery.DataRecord, field string) bool {
	for _, row := range rows {
		if isNumeric(row[field]) {
			return true
		}
	}
	return false
}

// ===== Title Generation =====

// generateTitle builds a default human-readable chart title from the
// resolved bindings.
func generateTitle(kind Kind, xField string, yFields []string) string {
	x := formatFieldName(xField)
	y := formatFieldName(yFields[0])
	switch kind {
	case KindPie:
		return fmt.Sprintf("Distribution of %s", y)
	case KindLine:
		return fmt.Sprintf("%s over %s", y, x)
	case KindScatter:
		if len(yFields) > 1 {
			return fmt.Sprintf("%s vs %s", y, formatFieldName(yFields[1]))
		}
		return fmt.Sprintf("%s vs %s", y, x)
	case KindCandlestick:
		return fmt.Sprintf("Price Movement over %s", x)
	default:
		return fmt.Sprintf("%s by %s", y, x)
	}
}

// acronyms stay upper-case when title-casing field names.
var acronyms = map[string]string{
	"id": "ID", "url": "URL", "api": "API", "sql": "SQL", "ohlc": "OHLC",
}

// formatFieldName turns a snake_case field name into a display label:
// "total_revenue" becomes "Total Revenue", "user_id" becomes "User ID".
func formatFieldName(field string) string {
	parts := strings.FieldsFunc(field, func(r rune) bool { return r == '_' || r == '-' })
	for i, p := range parts {
		lower := strings.ToLower(p)
		if up, ok := acronyms[lower]; ok {
			parts[i] = up
			continue
		}
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	if len(parts) == 0 {
		return field
	}
	return strings.Join(parts, " ")
}

func kindLabel(raw string) Kind {
	if k, ok := ParseKind(raw); ok {
		return k
	}
	return "unknown"
}
