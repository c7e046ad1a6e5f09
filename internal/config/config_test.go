package config

import (
	"os"
	"testing"
)

func TestDefaultConfigHasSensibleValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.OutputPath != "-" {
		t.Errorf("expected default output path '-', got %q", cfg.OutputPath)
	}
	if cfg.OutputFormat != "csv" {
		t.Errorf("expected default output format 'csv', got %q", cfg.OutputFormat)
	}
	if cfg.Engine != "duckdb" {
		t.Errorf("expected default engine 'duckdb', got %q", cfg.Engine)
	}
	if !cfg.Engines.DuckDB.Enabled {
		t.Error("expected duckdb to be enabled by default")
	}
	if cfg.AliasCeiling <= 0 {
		t.Errorf("expected a positive alias ceiling, got %d", cfg.AliasCeiling)
	}
}

func TestLoadWithNoConfigFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine != "duckdb" {
		t.Errorf("expected fallback default engine 'duckdb', got %q", cfg.Engine)
	}
	if cfg.MaxLevel != 0 {
		t.Errorf("expected fallback default max level 0, got %d", cfg.MaxLevel)
	}
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}

	t.Setenv("CANONIC_ENGINE", "sqlite")
	t.Setenv("CANONIC_VERBOSE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine != "sqlite" {
		t.Errorf("expected env override engine 'sqlite', got %q", cfg.Engine)
	}
	if !cfg.Verbose {
		t.Error("expected env override verbose=true")
	}
}
