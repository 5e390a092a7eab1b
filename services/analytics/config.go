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
	"os"
	"strconv"
	"time"
)

// Config holds analytics backend connection settings.
//
// Description:
//
//	Loaded from environment variables at startup via LoadConfig(). All
//	fields except the API token have working defaults; the token is
//	required only when a backend call is actually made.
//
// Thread Safety: Config is read-only after loading. Safe to share.
type Config struct {
	// BaseURL is the analytics backend endpoint.
	// Env: GENIEVERSE_API_BASE_URL (default: "http://localhost:8000/query")
	BaseURL string

	// APIToken is the bearer token for the backend.
	// Env: GENIEVERSE_API_TOKEN (default: "")
	APIToken string

	// Timeout bounds each backend request.
	// Env: GENIEVERSE_API_TIMEOUT_SECONDS (default: 120)
	Timeout time.Duration

	// MainSpace and MainFlowID select the conversational backend flow.
	// Env: GENIEVERSE_MAIN_SPACE (default: "genieverse"),
	// GENIEVERSE_MAIN_FLOW_ID (default: "main")
	MainSpace  string
	MainFlowID string

	// GeneratorSpace and GeneratorFlowID select the structured-data flow
	// used for chart and table queries.
	// Env: GENIEVERSE_GENERATOR_SPACE (default: "genieverse"),
	// GENIEVERSE_GENERATOR_FLOW_ID (default: "json_generator")
	GeneratorSpace  string
	GeneratorFlowID string

	// DataField names the record array in backend payloads.
	// Env: GENIEVERSE_DATA_FIELD (default: "data")
	DataField string

	// DashboardDir is the BadgerDB directory for saved dashboards. Empty
	// disables dashboard persistence.
	// Env: GENIEVERSE_DASHBOARD_DIR (default: "")
	DashboardDir string
}

// LoadConfig reads analytics configuration from environment variables,
// applying defaults for anything unset.
func LoadConfig() *Config {
	return &Config{
		BaseURL:         envStr("GENIEVERSE_API_BASE_URL", "http://localhost:8000/query"),
		APIToken:        envStr("GENIEVERSE_API_TOKEN", ""),
		Timeout:         time.Duration(envInt("GENIEVERSE_API_TIMEOUT_SECONDS", 120)) * time.Second,
		MainSpace:       envStr("GENIEVERSE_MAIN_SPACE", "genieverse"),
		MainFlowID:      envStr("GENIEVERSE_MAIN_FLOW_ID", "main"),
		GeneratorSpace:  envStr("GENIEVERSE_GENERATOR_SPACE", "genieverse"),
		GeneratorFlowID: envStr("GENIEVERSE_GENERATOR_FLOW_ID", "json_generator"),
		DataField:       envStr("GENIEVERSE_DATA_FIELD", "data"),
		DashboardDir:    envStr("GENIEVERSE_DASHBOARD_DIR", ""),
	}
}

// envStr reads a string env var with a default.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt reads an integer env var with a default. Invalid values fall back
// to the default.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
