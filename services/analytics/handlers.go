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
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/genieverse/services/dashboard"
)

// ErrorResponse is the JSON error body every endpoint returns on failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryRequest is the body for POST /v1/genieverse/query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Handlers holds the HTTP handlers for the analytics service.
//
// Thread Safety: Safe for concurrent use; all state is in the pipeline and
// dashboard manager, which are concurrency-safe.
type Handlers struct {
	pipeline   *Pipeline
	dashboards *dashboard.Manager
}

// NewHandlers creates the handler set. dashboards may be nil when dashboard
// persistence is disabled; the dashboard endpoints then return 503.
func NewHandlers(pipeline *Pipeline, dashboards *dashboard.Manager) *Handlers {
	if pipeline == nil {
		panic("NewHandlers: pipeline must not be nil")
	}
	return &Handlers{pipeline: pipeline, dashboards: dashboards}
}

// HandleQuery handles POST /v1/genieverse/query.
//
// Description:
//
//	Runs one query through the full pipeline: route, backend call, payload
//	recovery, chart normalization. Degraded responses (truncated payloads,
//	undrawable charts) still return 200 with the recovered content; only a
//	backend transport failure produces 502.
//
// Response:
//
//	200 OK: Result
//	400 Bad Request: Missing or empty query
//	502 Bad Gateway: Backend unreachable or returned a non-200
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "MISSING_QUERY",
		})
		return
	}

	result, err := h.pipeline.Process(c.Request.Context(), req.Query)
	if err != nil {
		logger.Error("Pipeline failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "analytics backend unavailable",
			Code:  "BACKEND_ERROR",
		})
		return
	}

	logger.Info("Query processed",
		slog.String("destination", string(result.Destination)),
		slog.Bool("truncated", result.Truncated),
		slog.Bool("chart", result.Chart != nil),
	)
	c.JSON(http.StatusOK, result)
}

// HandleListDashboards handles GET /v1/genieverse/dashboards.
func (h *Handlers) HandleListDashboards(c *gin.Context) {
	if !h.requireDashboards(c) {
		return
	}
	dashboards, err := h.dashboards.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "listing dashboards failed",
			Code:  "STORE_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboards": dashboards})
}

// HandleGetDashboard handles GET /v1/genieverse/dashboards/:id.
func (h *Handlers) HandleGetDashboard(c *gin.Context) {
	if !h.requireDashboards(c) {
		return
	}
	dash, err := h.dashboards.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, dashboard.ErrDashboardNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "dashboard not found",
			Code:  "DASHBOARD_NOT_FOUND",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "loading dashboard failed",
			Code:  "STORE_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, dash)
}

// HandleDeleteDashboard handles DELETE /v1/genieverse/dashboards/:id.
func (h *Handlers) HandleDeleteDashboard(c *gin.Context) {
	if !h.requireDashboards(c) {
		return
	}
	err := h.dashboards.Remove(c.Request.Context(), c.Param("id"))
	if errors.Is(err, dashboard.ErrDashboardNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "dashboard not found",
			Code:  "DASHBOARD_NOT_FOUND",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "deleting dashboard failed",
			Code:  "STORE_ERROR",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDashboardStats handles GET /v1/genieverse/dashboards/stats.
func (h *Handlers) HandleDashboardStats(c *gin.Context) {
	if !h.requireDashboards(c) {
		return
	}
	stats, err := h.dashboards.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "computing dashboard stats failed",
			Code:  "STORE_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleHealth handles GET /v1/genieverse/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"dashboards": h.dashboards != nil,
	})
}

// requireDashboards writes a 503 and returns false when dashboard
// persistence is disabled.
func (h *Handlers) requireDashboards(c *gin.Context) bool {
	if h.dashboards == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "dashboard persistence is disabled; set GENIEVERSE_DASHBOARD_DIR",
			Code:  "DASHBOARDS_DISABLED",
		})
		return false
	}
	return true
}

// getOrCreateRequestID returns the inbound X-Request-ID header, minting a
// fresh UUID when absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}
