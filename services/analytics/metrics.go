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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genieverse",
		Subsystem: "analytics",
		Name:      "backend_requests_total",
		Help:      "Backend requests by flow and outcome.",
	}, []string{"flow", "outcome"})

	backendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "genieverse",
		Subsystem: "analytics",
		Name:      "backend_latency_seconds",
		Help:      "Backend request latency by flow.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"flow"})

	pipelineQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genieverse",
		Subsystem: "analytics",
		Name:      "pipeline_queries_total",
		Help:      "Pipeline queries by destination and outcome.",
	}, []string{"destination", "outcome"})
)
