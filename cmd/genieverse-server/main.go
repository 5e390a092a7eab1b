// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command genieverse-server starts the Genieverse analytics gateway.
//
// The gateway sits between a chat UI and an analytics backend:
//   - Routes each query to the right backend flow by counting signal phrases
//   - Recovers structured payloads from truncated backend responses
//   - Normalizes chart payloads into one canonical description
//   - Creates and persists multi-chart dashboards (BadgerDB)
//
// Usage:
//
//	go run ./cmd/genieverse-server
//	go run ./cmd/genieverse-server -port 9090
//
// With a backend:
//
//	GENIEVERSE_API_BASE_URL=https://backend.example/query \
//	GENIEVERSE_API_TOKEN=... go run ./cmd/genieverse-server
//
// With dashboard persistence:
//
//	GENIEVERSE_DASHBOARD_DIR=~/.genieverse/dashboards go run ./cmd/genieverse-server
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/genieverse/health
//
//	# Run a query
//	curl -X POST http://localhost:8080/v1/genieverse/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "plot a bar chart of revenue by region"}'
//
//	# List dashboards
//	curl http://localhost:8080/v1/genieverse/dashboards | jq
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/genieverse/services/analytics"
	"github.com/AleutianAI/genieverse/services/chart"
	"github.com/AleutianAI/genieverse/services/config"
	"github.com/AleutianAI/genieverse/services/dashboard"
	"github.com/AleutianAI/genieverse/services/recovery"
	"github.com/AleutianAI/genieverse/services/routing"
	badgerstore "github.com/AleutianAI/genieverse/services/storage/badger"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from inbound
	// headers through every pipeline stage.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := analytics.LoadConfig()

	signalCfg, err := config.GetSignalConfig(context.Background())
	if err != nil {
		slog.Error("Loading routing signals failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	chartCfg, err := config.GetChartConfig(context.Background())
	if err != nil {
		slog.Error("Loading chart defaults failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Dashboard persistence degrades gracefully: without a directory the
	// service runs, and dashboard queries fall back to the data flow.
	var dashboards *dashboard.Manager
	var dashboardDB *badgerstore.DB
	if cfg.DashboardDir != "" {
		bcfg := badgerstore.DefaultConfig()
		bcfg.Path = cfg.DashboardDir
		db, err := badgerstore.OpenDB(bcfg)
		if err != nil {
			slog.Warn("Dashboard BadgerDB unavailable, dashboard persistence disabled",
				slog.String("path", cfg.DashboardDir),
				slog.String("error", err.Error()),
			)
		} else {
			dashboardDB = db
			dashboards = dashboard.NewManager(dashboard.NewBadgerStore(db, slog.Default()), slog.Default())
			slog.Info("Dashboard BadgerDB opened", slog.String("path", cfg.DashboardDir))
		}
	}

	pipeline := analytics.NewPipeline(
		routing.NewRouter(signalCfg, slog.Default()),
		analytics.NewClient(cfg, slog.Default()),
		recovery.NewRepairer(cfg.DataField, slog.Default()),
		chart.NewNormalizer(chartCfg, slog.Default()),
		dashboards,
		slog.Default(),
	)
	handlers := analytics.NewHandlers(pipeline, dashboards)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("genieverse"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	analytics.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, dashboards != nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Genieverse server")
		if dashboardDB != nil {
			if err := dashboardDB.Close(); err != nil {
				slog.Warn("Closing dashboard BadgerDB failed", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Genieverse server listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, router); err != nil {
		slog.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// printBanner prints the startup banner.
func printBanner(port int, dashboardsEnabled bool) {
	fmt.Printf(`
  ____            _
 / ___| ___ _ __ (_) _____   _____ _ __ ___  ___
| |  _ / _ \ '_ \| |/ _ \ \ / / _ \ '__/ __|/ _ \
| |_| |  __/ | | | |  __/\ V /  __/ |  \__ \  __/
 \____|\___|_| |_|_|\___| \_/ \___|_|  |___/\___|

 Analytics gateway on port %d
 Dashboards: %v
 Endpoints:  POST /v1/genieverse/query
             GET  /v1/genieverse/dashboards
             GET  /v1/genieverse/health
             GET  /metrics

`, port, dashboardsEnabled)
}
