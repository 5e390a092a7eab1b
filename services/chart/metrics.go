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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	normalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genieverse",
		Subsystem: "chart",
		Name:      "normalize_total",
		Help:      "Chart normalization attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	rowsDropped = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "genieverse",
		Subsystem: "chart",
		Name:      "rows_dropped",
		Help:      "Rows dropped per normalization for missing required fields.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 100},
	})
)
