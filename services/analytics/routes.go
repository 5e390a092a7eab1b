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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all Genieverse routes with the router.
//
// Description:
//
//	Registers all /v1/genieverse/* endpoints with the given Gin router
//	group. The group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST   /v1/genieverse/query - Run a query through the pipeline
//	GET    /v1/genieverse/dashboards - List saved dashboards
//	GET    /v1/genieverse/dashboards/stats - Registry statistics
//	GET    /v1/genieverse/dashboards/:id - Get one dashboard
//	DELETE /v1/genieverse/dashboards/:id - Delete one dashboard
//	GET    /v1/genieverse/health - Health check
//
// Example:
//
//	handlers := analytics.NewHandlers(pipeline, dashboards)
//	v1 := router.Group("/v1")
//	analytics.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	gv := rg.Group("/genieverse")
	{
		gv.POST("/query", handlers.HandleQuery)

		gv.GET("/dashboards", handlers.HandleListDashboards)
		gv.GET("/dashboards/stats", handlers.HandleDashboardStats)
		gv.GET("/dashboards/:id", handlers.HandleGetDashboard)
		gv.DELETE("/dashboards/:id", handlers.HandleDeleteDashboard)

		gv.GET("/health", handlers.HandleHealth)
	}
}
