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
	"testing"
)

func TestLoadSignalConfig_Embedded(t *testing.T) {
	ctx := context.Background()
	cfg, err := LoadSignalConfig(ctx, defaultRouterSignalsYAML)
	if err != nil {
		t.Fatalf("LoadSignalConfig failed on embedded YAML: %v", err)
	}

	for _, dest := range []string{"visualization", "data", "dashboard"} {
		if len(cfg.SignalsFor(dest)) == 0 {
			t.Errorf("expected signals for destination %q", dest)
		}
	}
	found := false
	for _, s := range cfg.SignalsFor("visualization") {
		if s == "bar chart" {
			found = true
		}
	}
	if !found {
		t.Error("expected visualization signals to contain 'bar chart'")
	}
}

func TestLoadSignalConfig_NormalizesAndDeduplicates(t *testing.T) {
	yaml := []byte(`
destinations:
  data:
    signals:
      - "  Show   Me "
      - show me
      - SQL
`)
	cfg, err := LoadSignalConfig(context.Background(), yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	signals := cfg.SignalsFor("data")
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals after dedup, got %v", signals)
	}
	if signals[0] != "show me" || signals[1] != "sql" {
		t.Errorf("unexpected normalized signals: %v", signals)
	}
}

func TestLoadSignalConfig_RejectsEmptySignalSet(t *testing.T) {
	yaml := []byte(`
destinations:
  data:
    signals: []
`)
	if _, err := LoadSignalConfig(context.Background(), yaml); err == nil {
		t.Fatal("expected error for empty signal set")
	}
}

func TestLoadSignalConfig_RejectsEmptyData(t *testing.T) {
	if _, err := LoadSignalConfig(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty YAML data")
	}
}

func TestGetSignalConfig_Caches(t *testing.T) {
	ResetSignalConfig()
	defer ResetSignalConfig()

	ctx := context.Background()
	a, err := GetSignalConfig(ctx)
	if err != nil {
		t.Fatalf("GetSignalConfig failed: %v", err)
	}
	b, err := GetSignalConfig(ctx)
	if err != nil {
		t.Fatalf("GetSignalConfig failed on second call: %v", err)
	}
	if a != b {
		t.Error("expected cached config pointer on repeat call")
	}
}

func TestLoadChartConfig_Embedded(t *testing.T) {
	cfg, err := LoadChartConfig(context.Background(), defaultChartConfigYAML)
	if err != nil {
		t.Fatalf("LoadChartConfig failed on embedded YAML: %v", err)
	}
	if cfg.DefaultColor != "#4FC3F7" {
		t.Errorf("expected default_color #4FC3F7, got %q", cfg.DefaultColor)
	}
	if cfg.MaxRenderRows != 5000 {
		t.Errorf("expected max_render_rows 5000, got %d", cfg.MaxRenderRows)
	}
	if len(cfg.Palette) == 0 {
		t.Fatal("expected a non-empty palette")
	}
	if got := cfg.SeriesColor(len(cfg.Palette)); got != cfg.Palette[0] {
		t.Errorf("expected palette to wrap, got %q", got)
	}
}

func TestLoadChartConfig_Defaults(t *testing.T) {
	cfg, err := LoadChartConfig(context.Background(), []byte("palette: []\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultColor != DefaultChartColor {
		t.Errorf("expected default color %q, got %q", DefaultChartColor, cfg.DefaultColor)
	}
	if cfg.MaxRenderRows != DefaultMaxRenderRows {
		t.Errorf("expected default max rows %d, got %d", DefaultMaxRenderRows, cfg.MaxRenderRows)
	}
}
