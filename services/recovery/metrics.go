// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recoveryRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genieverse",
		Subsystem: "recovery",
		Name:      "runs_total",
		Help:      "Total recovery operations by method",
	}, []string{"method"})

	recoveryTruncationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "genieverse",
		Subsystem: "recovery",
		Name:      "truncations_total",
		Help:      "Responses where trailing records were discarded",
	})

	recoveryRecordsRecovered = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "genieverse",
		Subsystem: "recovery",
		Name:      "records_recovered",
		Help:      "Complete records recovered per response",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
	})

	recoveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "genieverse",
		Subsystem: "recovery",
		Name:      "latency_seconds",
		Help:      "Recovery execution latency",
		Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})
)
