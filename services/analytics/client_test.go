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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/genieverse/services/routing"
)

func TestUnwrapEmbeddedPayload_DirectPayload(t *testing.T) {
	body := `{"status": "success", "data": []}`
	if got := unwrapEmbeddedPayload([]byte(body)); got != body {
		t.Errorf("direct payload altered: %q", got)
	}
}

func TestUnwrapEmbeddedPayload_EmbeddedString(t *testing.T) {
	inner := `{"status": "success", "chart_type": "bar", "data": []}`
	outer, _ := json.Marshal(map[string]any{"response": inner})

	if got := unwrapEmbeddedPayload(outer); got != inner {
		t.Errorf("got %q, want embedded payload", got)
	}
}

func TestUnwrapEmbeddedPayload_TruncatedEmbeddedString(t *testing.T) {
	inner := `{"status": "success", "data": [{"x": 1}, {"x"`
	outer, _ := json.Marshal(map[string]any{"message": inner})

	if got := unwrapEmbeddedPayload(outer); got != inner {
		t.Errorf("got %q, want truncated embedded payload passed through", got)
	}
}

func TestUnwrapEmbeddedPayload_PlainText(t *testing.T) {
	body := `not json at all`
	if got := unwrapEmbeddedPayload([]byte(body)); got != body {
		t.Errorf("plain text altered: %q", got)
	}
}

func TestUnwrapEmbeddedPayload_NoMatchingField(t *testing.T) {
	body := `{"notes": "hello", "count": 3}`
	if got := unwrapEmbeddedPayload([]byte(body)); got != body {
		t.Errorf("unrelated object altered: %q", got)
	}
}

func TestSend_SelectsFlowByDestination(t *testing.T) {
	var got queryRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "success", "data": []}`))
	}))
	defer srv.Close()

	cfg := &Config{
		BaseURL:         srv.URL,
		APIToken:        "secret-token",
		Timeout:         5 * time.Second,
		MainSpace:       "genieverse",
		MainFlowID:      "main",
		GeneratorSpace:  "genieverse",
		GeneratorFlowID: "json_generator",
	}
	c := NewClient(cfg, nil)

	if _, err := c.Send(context.Background(), "plot revenue", routing.DestinationVisualization); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.FlowID != "json_generator" {
		t.Errorf("FlowID = %q, want json_generator for visualization", got.FlowID)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	if _, err := c.Send(context.Background(), "hello there", routing.DestinationGeneral); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.FlowID != "main" {
		t.Errorf("FlowID = %q, want main for general", got.FlowID)
	}
	if got.Query != "hello there" {
		t.Errorf("Query = %q", got.Query)
	}
}

func TestSend_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream flow crashed", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	_, err := c.Send(context.Background(), "how many rows", routing.DestinationData)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestSend_EmptyQueryRejected(t *testing.T) {
	c := NewClient(&Config{BaseURL: "http://localhost:1", Timeout: time.Second}, nil)
	if _, err := c.Send(context.Background(), "", routing.DestinationData); err == nil {
		t.Fatal("expected error for empty query")
	}
}
