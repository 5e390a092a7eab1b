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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/genieverse/services/chart"
	"github.com/AleutianAI/genieverse/services/dashboard"
	"github.com/AleutianAI/genieverse/services/recovery"
	"github.com/AleutianAI/genieverse/services/routing"
)

// Result is the outcome of one query through the pipeline.
type Result struct {
	// Destination is where the router sent the query.
	Destination routing.Destination `json:"destination"`

	// Text is the transcript line to show the user. Always set.
	Text string `json:"text"`

	// Payload is the recovered structured payload, when the backend
	// returned one.
	Payload *recovery.RecoveredPayload `json:"payload,omitempty"`

	// Chart is the normalized chart description, when the payload yielded
	// a renderable chart.
	Chart *chart.Description `json:"chart,omitempty"`

	// Dashboard is the created dashboard, for dashboard queries.
	Dashboard *dashboard.Dashboard `json:"dashboard,omitempty"`

	// Truncated reports that the backend response was cut off and the
	// payload holds only the recovered prefix.
	Truncated bool `json:"truncated"`
}

// Backend abstracts the analytics client so tests can stub the wire.
type Backend interface {
	Send(ctx context.Context, query string, dest routing.Destination) (string, error)
}

// Pipeline runs a query end to end: route, call the backend, recover the
// payload, and normalize any chart.
//
// # Thread Safety
//
// Safe for concurrent use; all stages are stateless or internally locked.
type Pipeline struct {
	router     *routing.Router
	backend    Backend
	repairer   *recovery.Repairer
	normalizer *chart.Normalizer
	dashboards *dashboard.Manager
	logger     *slog.Logger
}

// NewPipeline assembles a Pipeline.
//
// # Inputs
//   - router, backend, repairer, normalizer: Required stages.
//   - dashboards: Optional; nil disables dashboard creation, in which case
//     dashboard-routed queries fall back to the data flow.
//   - logger: Nil falls back to slog.Default().
func NewPipeline(router *routing.Router, backend Backend, repairer *recovery.Repairer,
	normalizer *chart.Normalizer, dashboards *dashboard.Manager, logger *slog.Logger) *Pipeline {
	if router == nil || backend == nil || repairer == nil || normalizer == nil {
		panic("NewPipeline: router, backend, repairer, and normalizer must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		router:     router,
		backend:    backend,
		repairer:   repairer,
		normalizer: normalizer,
		dashboards: dashboards,
		logger:     logger,
	}
}

// Process runs one query through the pipeline.
//
// # Description
//
// The result always carries usable Text, even when the backend response was
// truncated or malformed: recovery is total, and every degradation shows up
// as a plainer result, never as a failed query. The returned error is
// reserved for the cases where nothing could be produced at all (backend
// unreachable, dashboard storage down).
func (p *Pipeline) Process(ctx context.Context, query string) (*Result, error) {
	ctx, span := analyticsTracer.Start(ctx, "analytics.Process",
		trace.WithAttributes(attribute.Int("query.length", len(query))))
	defer span.End()

	decision := p.router.Route(ctx, query)
	span.SetAttributes(attribute.String("routing.destination", string(decision.Destination)))

	dest := decision.Destination
	if dest == routing.DestinationDashboard {
		if p.dashboards != nil {
			return p.createDashboard(ctx, query)
		}
		p.logger.Warn("Dashboard persistence disabled; routing query to data flow")
		dest = routing.DestinationData
	}

	raw, err := p.backend.Send(ctx, query, dest)
	if err != nil {
		pipelineQueries.WithLabelValues(string(dest), "backend_error").Inc()
		return nil, fmt.Errorf("querying backend: %w", err)
	}

	result := &Result{Destination: dest}
	payload, err := p.repairer.Recover(ctx, raw)
	if errors.Is(err, recovery.ErrDataFieldNotFound) {
		// No record array: a conversational answer, or an error payload.
		result.Payload = payload
		if IsErrorPayload(payload) {
			result.Text = ErrorMessage(payload)
			pipelineQueries.WithLabelValues(string(dest), "backend_reported_error").Inc()
			return result, nil
		}
		if text := ExtractDisplayText(payload); text != "" {
			result.Text = text
		} else {
			result.Text = "The backend returned no readable answer."
		}
		pipelineQueries.WithLabelValues(string(dest), "text").Inc()
		return result, nil
	}

	result.Payload = payload
	result.Truncated = !payload.IsComplete
	if IsErrorPayload(payload) {
		result.Text = ErrorMessage(payload)
		pipelineQueries.WithLabelValues(string(dest), "backend_reported_error").Inc()
		return result, nil
	}
	result.Text = FormatChartMessage(payload)

	if dest == routing.DestinationVisualization {
		desc, err := p.normalizer.Normalize(ctx, payload)
		switch {
		case err == nil:
			result.Chart = desc
			if desc.RowsTruncated {
				result.Text += fmt.Sprintf(" The chart shows the first %d rows.", len(desc.Rows))
			}
		case errors.Is(err, chart.ErrUnsupportedChartKind), errors.Is(err, chart.ErrInsufficientFields):
			// The data is still worth showing as a table.
			p.logger.Warn("Chart rejected; returning data without a chart",
				slog.String("error", err.Error()))
			result.Text = fmt.Sprintf("Retrieved %d data records, but the chart could not be drawn: %s",
				payload.RecordCount, err)
		default:
			return nil, fmt.Errorf("normalizing chart: %w", err)
		}
	}

	pipelineQueries.WithLabelValues(string(dest), "ok").Inc()
	return result, nil
}

// createDashboard handles dashboard-routed queries locally; no backend call
// is made until the dashboard's charts are rendered.
func (p *Pipeline) createDashboard(ctx context.Context, query string) (*Result, error) {
	dash, err := p.dashboards.Create(ctx, query)
	if errors.Is(err, dashboard.ErrNoChartsRequested) {
		pipelineQueries.WithLabelValues(string(routing.DestinationDashboard), "unparseable").Inc()
		return &Result{
			Destination: routing.DestinationDashboard,
			Text:        "I could not work out which charts the dashboard should contain. Try naming them, e.g. \"a bar chart of revenue by region and a pie chart of product categories\".",
		}, nil
	}
	if err != nil {
		pipelineQueries.WithLabelValues(string(routing.DestinationDashboard), "store_error").Inc()
		return nil, fmt.Errorf("creating dashboard: %w", err)
	}

	pipelineQueries.WithLabelValues(string(routing.DestinationDashboard), "ok").Inc()
	return &Result{
		Destination: routing.DestinationDashboard,
		Text:        FormatDashboardMessage(dash),
		Dashboard:   dash,
	}, nil
}
