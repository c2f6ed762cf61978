package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OUTPUT_DIR", "REPORT_FILE", "WRITE_CSV", "WRITE_XLSX", "CI_LEVEL",
		"PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"ARCHIVE_PATH", "ARCHIVE_ENABLED", "SIM_CONFIG", "SIM_SEED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Output.Dir != "out" || cfg.Output.ReportFile != "report.html" {
		t.Errorf("Unexpected output defaults: %+v", cfg.Output)
	}
	if !cfg.Output.WriteCSV || cfg.Output.WriteXLSX {
		t.Errorf("Unexpected writer defaults: %+v", cfg.Output)
	}
	if cfg.Output.CILevel != 0.95 {
		t.Errorf("CILevel = %v, want 0.95", cfg.Output.CILevel)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second || cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Unexpected server timeouts: %+v", cfg.Server)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Path != "overcount.db" {
		t.Errorf("Unexpected archive defaults: %+v", cfg.Archive)
	}
	if cfg.Sim.Seed != 0 {
		t.Errorf("Seed override = %d, want 0", cfg.Sim.Seed)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTPUT_DIR", "artifacts")
	t.Setenv("WRITE_XLSX", "true")
	t.Setenv("CI_LEVEL", "0.9")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("ARCHIVE_ENABLED", "false")
	t.Setenv("SIM_SEED", "777")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Output.Dir != "artifacts" {
		t.Errorf("Dir = %q, want artifacts", cfg.Output.Dir)
	}
	if !cfg.Output.WriteXLSX {
		t.Error("WRITE_XLSX override not applied")
	}
	if cfg.Output.CILevel != 0.9 {
		t.Errorf("CILevel = %v, want 0.9", cfg.Output.CILevel)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Archive.Enabled {
		t.Error("ARCHIVE_ENABLED override not applied")
	}
	if cfg.Sim.Seed != 777 {
		t.Errorf("Seed = %d, want 777", cfg.Sim.Seed)
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CI_LEVEL", "not-a-number")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")
	t.Setenv("ARCHIVE_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Output.CILevel != 0.95 {
		t.Errorf("CILevel = %v, want default 0.95", cfg.Output.CILevel)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want default 10s", cfg.Server.ReadTimeout)
	}
	if !cfg.Archive.Enabled {
		t.Error("Archive.Enabled should keep its default on a bad value")
	}
}

func TestLoad_InvalidCILevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("CI_LEVEL", "1.5")

	if _, err := Load(); err == nil {
		t.Error("Expected an error for CI level outside (0, 1), got nil")
	}
}
