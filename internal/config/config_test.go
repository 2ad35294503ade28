package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ScanWindowDays != 30 {
		t.Errorf("ScanWindowDays = %d, want 30", cfg.ScanWindowDays)
	}
	if cfg.DefaultAccountType != "personal" {
		t.Errorf("DefaultAccountType = %q", cfg.DefaultAccountType)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SPENDLENS_PORT", "9090")
	t.Setenv("SPENDLENS_BIGQUERY_PROJECT", "my-project")
	t.Setenv("SPENDLENS_SCAN_WINDOW_DAYS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.BigQueryProject != "my-project" {
		t.Errorf("BigQueryProject = %q", cfg.BigQueryProject)
	}
	if cfg.ScanWindowDays != 60 {
		t.Errorf("ScanWindowDays = %d, want 60", cfg.ScanWindowDays)
	}
}
