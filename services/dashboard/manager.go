// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dashboard turns multi-chart natural-language requests into saved
// dashboard definitions and manages the persistent registry of them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/genieverse/services/chart"
)

// ErrNoChartsRequested reports a dashboard query from which no chart request
// could be parsed.
var ErrNoChartsRequested = errors.New("no chart requests found in dashboard query")

// ErrDashboardNotFound reports a lookup for an unknown dashboard ID.
var ErrDashboardNotFound = errors.New("dashboard not found")

// ChartSpec is one chart requested by a dashboard query. The Query field is
// the standalone query to send to the analytics backend when the dashboard
// is rendered.
type ChartSpec struct {
	Kind        chart.Kind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Query       string     `json:"query"`
}

// Dashboard is a saved dashboard definition.
type Dashboard struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Query   string      `json:"query"`
	Charts  []ChartSpec `json:"charts"`
	Created time.Time   `json:"created"`
}

// Stats summarizes the dashboard registry.
type Stats struct {
	TotalDashboards int            `json:"total_dashboards"`
	TotalCharts     int            `json:"total_charts"`
	ChartKinds      map[string]int `json:"chart_kinds"`
	Newest          *Dashboard     `json:"newest_dashboard,omitempty"`
	Oldest          *Dashboard     `json:"oldest_dashboard,omitempty"`
}

// Manager creates, lists, and removes dashboards against a Store.
//
// # Thread Safety
//
// Safe for concurrent use when the underlying Store is.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a Manager. store must be non-nil; a nil logger falls
// back to slog.Default().
func NewManager(store Store, logger *slog.Logger) *Manager {
	if store == nil {
		panic("NewManager: store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Create parses a dashboard query and persists the resulting definition.
//
// # Outputs
//   - *Dashboard: The saved dashboard with a fresh ID. Nil on error.
//   - error: ErrNoChartsRequested when the query names no chart, or a
//     storage error.
func (m *Manager) Create(ctx context.Context, query string) (*Dashboard, error) {
	charts := parseChartRequests(query)
	if len(charts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoChartsRequested, truncateQuery(query))
	}

	dash := &Dashboard{
		ID:      uuid.NewString(),
		Title:   "Live Dashboard",
		Query:   query,
		Charts:  charts,
		Created: time.Now().UTC(),
	}
	if err := m.store.Save(ctx, dash); err != nil {
		return nil, fmt.Errorf("saving dashboard: %w", err)
	}

	m.logger.Info("Dashboard created",
		slog.String("dashboard_id", dash.ID),
		slog.Int("charts", len(dash.Charts)),
	)
	return dash, nil
}

// Get returns a dashboard by ID; ErrDashboardNotFound when absent.
func (m *Manager) Get(ctx context.Context, id string) (*Dashboard, error) {
	return m.store.Get(ctx, id)
}

// List returns all dashboards ordered oldest first.
func (m *Manager) List(ctx context.Context) ([]*Dashboard, error) {
	dashboards, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(dashboards, func(i, j int) bool {
		return dashboards[i].Created.Before(dashboards[j].Created)
	})
	return dashboards, nil
}

// Remove deletes a dashboard by ID; ErrDashboardNotFound when absent.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("Dashboard removed", slog.String("dashboard_id", id))
	return nil
}

// Clear deletes every dashboard.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.DeleteAll(ctx); err != nil {
		return err
	}
	m.logger.Info("Dashboard registry cleared")
	return nil
}

// GetStats summarizes the registry: totals, per-kind chart counts, and the
// newest and oldest dashboards.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	dashboards, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalDashboards: len(dashboards),
		ChartKinds:      make(map[string]int),
	}
	for _, d := range dashboards {
		stats.TotalCharts += len(d.Charts)
		for _, c := range d.Charts {
			stats.ChartKinds[string(c.Kind)]++
		}
	}
	if len(dashboards) > 0 {
		stats.Oldest = dashboards[0]
		stats.Newest = dashboards[len(dashboards)-1]
	}
	return stats, nil
}

// ===== Query Parsing =====

// segmentSplit separates a query into per-chart segments on sentence
// boundaries and "and" conjunctions.
var segmentSplit = regexp.MustCompile(`[.!?]\s*(?:and\s+)?|\s+and\s+`)

// descriptionExtract pulls the subject out of a chart request: everything
// after "for", "of", "showing", or "with".
var descriptionExtract = regexp.MustCompile(`charts?\s+(?:for|of|showing|with)\s+(.+)$`)

// parseableKinds are the kinds a dashboard segment can request, checked in
// declaration order.
var parseableKinds = []chart.Kind{chart.KindBar, chart.KindPie, chart.KindLine, chart.KindScatter}

// parseChartRequests extracts chart requests from a dashboard query.
//
// Each segment ("a bar chart of revenue by region and a pie chart for
// product categories") yields at most one request per chart kind. Duplicate
// kind+description pairs are collapsed. Well-known requests with no explicit
// subject fall back to canned descriptions.
func parseChartRequests(query string) []ChartSpec {
	lower := strings.ToLower(query)
	var specs []ChartSpec
	seen := make(map[string]bool)

	for _, segment := range segmentSplit.Split(lower, -1) {
		segment = strings.TrimSpace(segment)
		if len(segment) < 5 {
			continue
		}
		for _, kind := range parseableKinds {
			if !strings.Contains(segment, string(kind)+" chart") {
				continue
			}
			desc := extractDescription(segment, kind)
			if desc == "" {
				continue
			}
			key := string(kind) + "|" + desc
			if seen[key] {
				continue
			}
			seen[key] = true
			specs = append(specs, ChartSpec{
				Kind:        kind,
				Title:       fmt.Sprintf("%s Chart: %s", titleCase(string(kind)), titleCase(desc)),
				Description: desc,
				Query:       fmt.Sprintf("Create a %s chart for %s", kind, desc),
			})
		}
	}

	if len(specs) == 0 {
		specs = fallbackChartRequests(lower)
	}
	return specs
}

// extractDescription recovers the chart subject from a segment.
func extractDescription(segment string, kind chart.Kind) string {
	if m := descriptionExtract.FindStringSubmatch(segment); m != nil {
		return strings.TrimSpace(m[1])
	}
	// No prepositional phrase. Strip the request boilerplate and keep what
	// remains as the subject.
	desc := segment
	for _, verb := range []string{"create", "make", "generate", "build", "show", "add"} {
		desc = strings.TrimPrefix(desc, verb+" ")
	}
	desc = strings.TrimPrefix(desc, "a ")
	desc = strings.ReplaceAll(desc, string(kind)+" chart", "")
	desc = strings.TrimSpace(strings.Trim(desc, ",:"))
	return desc
}

// fallbackChartRequests maps well-known keyword combinations onto canned
// chart requests when no explicit "<kind> chart" phrase was found.
func fallbackChartRequests(lower string) []ChartSpec {
	var specs []ChartSpec
	if strings.Contains(lower, "customer") && strings.Contains(lower, "spend") {
		specs = append(specs, ChartSpec{
			Kind:        chart.KindBar,
			Title:       "Bar Chart: Top Customers By Spend",
			Description: "top 10 customers by spend",
			Query:       "Create a bar chart for top 10 customers by spend",
		})
	}
	if strings.Contains(lower, "categor") && strings.Contains(lower, "product") {
		specs = append(specs, ChartSpec{
			Kind:        chart.KindPie,
			Title:       "Pie Chart: Product Categories",
			Description: "product categories",
			Query:       "Create a pie chart for product categories",
		})
	}
	return specs
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncateQuery(q string) string {
	if len(q) > 80 {
		return q[:80] + "..."
	}
	return q
}
