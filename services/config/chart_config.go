// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Chart Configuration
// =============================================================================

//go:embed chart_defaults.yaml
var defaultChartConfigYAML []byte

// =============================================================================
// Chart Configuration Types
// =============================================================================

// ChartConfig holds renderer defaults shared by every chart kind.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ChartConfig struct {
	// DefaultColor is used when a chart has no color binding and a single
	// series.
	DefaultColor string `yaml:"default_color"`

	// MaxRenderRows caps rows handed to the renderer.
	MaxRenderRows int `yaml:"max_render_rows"`

	// Palette is cycled across series for multi-series charts.
	Palette []string `yaml:"palette"`
}

// SeriesColor returns the palette color for the i-th series.
func (c *ChartConfig) SeriesColor(i int) string {
	if len(c.Palette) == 0 {
		return c.DefaultColor
	}
	return c.Palette[i%len(c.Palette)]
}

const (
	// DefaultChartColor is applied when the config omits default_color.
	DefaultChartColor = "#4FC3F7"

	// DefaultMaxRenderRows is applied when the config omits max_render_rows.
	DefaultMaxRenderRows = 5000
)

// =============================================================================
// Singleton Chart Config
// =============================================================================

var (
	chartConfigMu      sync.RWMutex
	chartConfigOnce    sync.Once
	cachedChartConfig  *ChartConfig
	chartConfigLoadErr error
)

// GetChartConfig returns the cached chart configuration, loading the
// embedded defaults on first call.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetChartConfig(ctx context.Context) (*ChartConfig, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetChartConfig: ctx must not be nil")
	}

	chartConfigMu.RLock()
	if cachedChartConfig != nil || chartConfigLoadErr != nil {
		cfg, err := cachedChartConfig, chartConfigLoadErr
		chartConfigMu.RUnlock()
		return cfg, err
	}
	chartConfigMu.RUnlock()

	chartConfigMu.Lock()
	defer chartConfigMu.Unlock()

	if cachedChartConfig != nil || chartConfigLoadErr != nil {
		return cachedChartConfig, chartConfigLoadErr
	}

	chartConfigOnce.Do(func() {
		cachedChartConfig, chartConfigLoadErr = LoadChartConfig(ctx, defaultChartConfigYAML)
	})

	return cachedChartConfig, chartConfigLoadErr
}

// ResetChartConfig resets the cached config for testing.
func ResetChartConfig() {
	chartConfigMu.Lock()
	defer chartConfigMu.Unlock()
	cachedChartConfig = nil
	chartConfigLoadErr = nil
	chartConfigOnce = sync.Once{}
}

// LoadChartConfig loads and validates a ChartConfig from YAML bytes,
// applying defaults for missing fields.
func LoadChartConfig(ctx context.Context, data []byte) (*ChartConfig, error) {
	_, span := configTracer.Start(ctx, "config.LoadChartConfig")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadChartConfig: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadChartConfig: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg ChartConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadChartConfig: parsing YAML: %w", err)
	}

	if cfg.DefaultColor == "" {
		cfg.DefaultColor = DefaultChartColor
	}
	if cfg.MaxRenderRows <= 0 {
		cfg.MaxRenderRows = DefaultMaxRenderRows
	}
	for i, c := range cfg.Palette {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("LoadChartConfig: palette[%d] is empty", i)
		}
	}

	span.SetAttributes(
		attribute.Int("palette_size", len(cfg.Palette)),
		attribute.Int("max_render_rows", cfg.MaxRenderRows),
	)

	return &cfg, nil
}
