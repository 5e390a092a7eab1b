// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the embedded default configuration for the query
// router and chart renderer, with loaders that validate overrides.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

var configTracer = otel.Tracer("genieverse.config")

// MaxYAMLFileSize caps config file size to keep a bad deploy from feeding an
// unbounded document to the YAML parser.
const MaxYAMLFileSize = 1 << 20

// =============================================================================
// Embedded Default Routing Signals
// =============================================================================

//go:embed router_signals.yaml
var defaultRouterSignalsYAML []byte

// =============================================================================
// Signal Configuration Types
// =============================================================================

// SignalConfig is the routing vocabulary: the phrase sets whose presence in
// a query votes for each destination.
//
// Description:
//
//	The router counts how many distinct signals from each destination's set
//	appear in a query and routes to the destination with the most matches.
//	The vocabulary is configuration, not code: signals ship as an embedded
//	default and can be overridden per deployment.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type SignalConfig struct {
	// Destinations maps a destination name to its signal set.
	Destinations map[string]DestinationSignals `yaml:"destinations"`
}

// DestinationSignals is one destination's signal phrase set.
type DestinationSignals struct {
	// Signals are the phrases counted as routing votes. Single words or
	// multi-word phrases; matching is case-insensitive on word boundaries.
	Signals []string `yaml:"signals"`
}

// SignalsFor returns the signal set for a destination, nil when the
// destination has no configured signals.
func (c *SignalConfig) SignalsFor(destination string) []string {
	return c.Destinations[destination].Signals
}

// =============================================================================
// Singleton Signal Config
// =============================================================================

var (
	signalConfigMu      sync.RWMutex
	signalConfigOnce    sync.Once
	cachedSignalConfig  *SignalConfig
	signalConfigLoadErr error
)

// GetSignalConfig returns the cached routing signal configuration.
//
// Description:
//
//	Loads the embedded signal vocabulary on first call and caches it for
//	subsequent calls. Uses sync.Once for thread-safe initialization.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*SignalConfig - The loaded configuration. Never nil on success.
//	error - Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetSignalConfig(ctx context.Context) (*SignalConfig, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetSignalConfig: ctx must not be nil")
	}

	signalConfigMu.RLock()
	if cachedSignalConfig != nil || signalConfigLoadErr != nil {
		cfg, err := cachedSignalConfig, signalConfigLoadErr
		signalConfigMu.RUnlock()
		return cfg, err
	}
	signalConfigMu.RUnlock()

	signalConfigMu.Lock()
	defer signalConfigMu.Unlock()

	if cachedSignalConfig != nil || signalConfigLoadErr != nil {
		return cachedSignalConfig, signalConfigLoadErr
	}

	signalConfigOnce.Do(func() {
		cachedSignalConfig, signalConfigLoadErr = LoadSignalConfig(ctx, defaultRouterSignalsYAML)
	})

	return cachedSignalConfig, signalConfigLoadErr
}

// ResetSignalConfig resets the cached config for testing.
//
// Thread Safety: Safe for concurrent use.
func ResetSignalConfig() {
	signalConfigMu.Lock()
	defer signalConfigMu.Unlock()
	cachedSignalConfig = nil
	signalConfigLoadErr = nil
	signalConfigOnce = sync.Once{}
}

// LoadSignalConfig loads and validates a SignalConfig from YAML bytes.
//
// Description:
//
//	Parses the YAML, lower-cases and deduplicates every signal phrase, and
//	validates that each declared destination carries at least one signal.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*SignalConfig - The validated configuration.
//	error - Non-nil if parsing or validation fails.
func LoadSignalConfig(ctx context.Context, data []byte) (*SignalConfig, error) {
	_, span := configTracer.Start(ctx, "config.LoadSignalConfig")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadSignalConfig: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadSignalConfig: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg SignalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadSignalConfig: parsing YAML: %w", err)
	}
	if len(cfg.Destinations) == 0 {
		return nil, fmt.Errorf("LoadSignalConfig: no destinations configured")
	}

	total := 0
	for name, dest := range cfg.Destinations {
		if name == "" {
			return nil, fmt.Errorf("LoadSignalConfig: destination with empty name")
		}
		normalized, err := normalizeSignals(name, dest.Signals)
		if err != nil {
			return nil, fmt.Errorf("LoadSignalConfig: %w", err)
		}
		cfg.Destinations[name] = DestinationSignals{Signals: normalized}
		total += len(normalized)
	}

	span.SetAttributes(
		attribute.Int("destinations", len(cfg.Destinations)),
		attribute.Int("signals", total),
	)

	slog.Info("routing signal config loaded",
		slog.Int("destinations", len(cfg.Destinations)),
		slog.Int("signals", total),
	)

	return &cfg, nil
}

// normalizeSignals lower-cases, trims, and deduplicates one destination's
// signal set, rejecting empty sets and empty phrases.
func normalizeSignals(destination string, signals []string) ([]string, error) {
	if len(signals) == 0 {
		return nil, fmt.Errorf("destination %q: signals must not be empty", destination)
	}
	seen := make(map[string]bool, len(signals))
	out := make([]string, 0, len(signals))
	for i, s := range signals {
		s = strings.ToLower(strings.Join(strings.Fields(s), " "))
		if s == "" {
			return nil, fmt.Errorf("destination %q: signal[%d] is empty", destination, i)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
