// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics ties the query pipeline together: routing, the backend
// client, payload recovery, chart normalization, and the HTTP surface.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/genieverse/services/routing"
)

var analyticsTracer = otel.Tracer("genieverse.analytics")

// maxResponseBytes caps how much of a backend response is read. Structured
// payloads are a few hundred KB at most; anything larger is a runaway flow.
const maxResponseBytes = 16 << 20

// queryRequest is the wire format the analytics backend accepts.
type queryRequest struct {
	Query     string `json:"query"`
	SpaceName string `json:"space_name"`
	FlowID    string `json:"flowId"`
}

// Client sends queries to the analytics backend and unwraps the response
// body down to the raw payload text the recovery layer consumes.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	cfg        *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client from config. A nil logger falls back to
// slog.Default().
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	if cfg == nil {
		panic("NewClient: cfg must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Send posts a query to the backend flow selected by the routing destination
// and returns the raw response payload text.
//
// # Description
//
// Visualization and data queries go to the structured-data flow; everything
// else goes to the main conversational flow. The returned string is NOT
// parsed JSON: backends wrap their payload inconsistently (sometimes a bare
// object, sometimes a JSON string inside a "response" or "message" field),
// and the payload itself may be truncated. Unwrapping happens here; parsing
// and repair belong to the recovery layer.
//
// # Inputs
//   - ctx: Context for cancellation and tracing.
//   - query: The user query. Must be non-empty.
//   - dest: The routing destination selecting the backend flow.
//
// # Outputs
//   - string: The raw payload text. Empty only on error.
//   - error: Non-nil on transport failure or a non-200 status.
func (c *Client) Send(ctx context.Context, query string, dest routing.Destination) (string, error) {
	if query == "" {
		return "", fmt.Errorf("Send: query must not be empty")
	}

	ctx, span := analyticsTracer.Start(ctx, "analytics.Send",
		trace.WithAttributes(
			attribute.String("routing.destination", string(dest)),
			attribute.Int("query.length", len(query)),
		))
	defer span.End()

	req := queryRequest{Query: query}
	flow := "main"
	switch dest {
	case routing.DestinationVisualization, routing.DestinationData:
		req.SpaceName = c.cfg.GeneratorSpace
		req.FlowID = c.cfg.GeneratorFlowID
		flow = "json_generator"
	default:
		req.SpaceName = c.cfg.MainSpace
		req.FlowID = c.cfg.MainFlowID
	}
	span.SetAttributes(attribute.String("analytics.flow", flow))

	start := time.Now()
	body, err := c.post(ctx, req)
	backendLatency.WithLabelValues(flow).Observe(time.Since(start).Seconds())
	if err != nil {
		backendRequests.WithLabelValues(flow, "error").Inc()
		return "", err
	}
	backendRequests.WithLabelValues(flow, "ok").Inc()

	raw := unwrapEmbeddedPayload(body)
	c.logger.Debug("Backend response received",
		slog.String("flow", flow),
		slog.Int("body_bytes", len(body)),
		slog.Int("payload_bytes", len(raw)),
	)
	return raw, nil
}

// post executes one HTTP round trip to the backend.
func (c *Client) post(ctx context.Context, req queryRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading backend response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, truncateBody(body))
	}
	return body, nil
}

// unwrapEmbeddedPayload digs the structured payload out of a backend
// response body.
//
// If the body is a JSON object carrying the payload directly (a "status"
// field at top level), the body is the payload. Otherwise the payload is
// often a JSON string nested inside a well-known wrapper field; the first
// such field whose string value looks like a payload wins. When nothing
// matches, the body itself is returned and the recovery layer decides what
// to make of it.
func unwrapEmbeddedPayload(body []byte) string {
	var outer map[string]any
	if err := json.Unmarshal(body, &outer); err != nil {
		return string(body)
	}
	if _, ok := outer["status"]; ok {
		return string(body)
	}

	for _, field := range []string{"response", "message", "content", "data", "result"} {
		s, ok := outer[field].(string)
		if !ok {
			continue
		}
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			if _, ok := inner["status"]; ok {
				return s
			}
			continue
		}
		// Not valid JSON as-is, but a truncated payload will not be.
		// Hand it to recovery if it at least starts like an object.
		if len(s) > 0 && s[0] == '{' {
			return s
		}
	}
	return string(body)
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
