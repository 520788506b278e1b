package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BASE_URL", "INSTANA_BASE_URL", "TOKEN", "INSTANA_API_TOKEN", "APPLICATION_ID",
		"INCIDENT_ID", "INCIDENT_TAG", "INSTANA_SRE_CONFIG", "INSTANA_SRE_MAX_CONCURRENCY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Instana.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Instana.Timeout)
	}
	if !cfg.Filters.PRC.RequireOpen || !cfg.Filters.PRC.RequirePRC {
		t.Fatalf("expected prc filter to require open PRC incidents")
	}
	if cfg.Actions.Retry.MaxAttempts != 3 || cfg.Actions.Retry.BaseDelay != 2*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Actions.Retry)
	}
	if len(cfg.Filters.Selectors[23]) != 4 {
		t.Fatalf("expected default selector for incident 23")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error without base URL and token")
	}
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
instana:
  baseURL: https://yaml.example
  apiToken: yaml-token
  timeout: 5s
enrichment:
  maxConcurrency: 4
output:
  dir: /tmp/out
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BASE_URL", "https://env.example")
	t.Setenv("INCIDENT_ID", "23")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Instana.BaseURL != "https://env.example" {
		t.Fatalf("env override not applied: %s", cfg.Instana.BaseURL)
	}
	if cfg.Instana.APIToken != "yaml-token" {
		t.Fatalf("unexpected token: %s", cfg.Instana.APIToken)
	}
	if cfg.Instana.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Instana.Timeout)
	}
	if cfg.Enrichment.MaxConcurrency != 4 {
		t.Fatalf("unexpected concurrency: %d", cfg.Enrichment.MaxConcurrency)
	}
	if cfg.Filters.IncidentID == nil || *cfg.Filters.IncidentID != 23 {
		t.Fatalf("expected incident id 23, got %v", cfg.Filters.IncidentID)
	}
	if got := cfg.Output.Path("prc.json"); got != filepath.Join("/tmp/out", "prc.json") {
		t.Fatalf("unexpected output path: %s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if err := cfg.ValidateAlerts(); err == nil {
		t.Fatalf("expected alerts validation to require APPLICATION_ID")
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("TOKEN")
	os.Unsetenv("BASE_URL")

	dir := t.TempDir()
	envPath := filepath.Join(dir, "sre.env")
	if err := os.WriteFile(envPath, []byte("BASE_URL=https://dotenv.example\nTOKEN=dotenv-token\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("BASE_URL")
		os.Unsetenv("TOKEN")
	})

	cfg, err := Load("", envPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Instana.BaseURL != "https://dotenv.example" || cfg.Instana.APIToken != "dotenv-token" {
		t.Fatalf("env file values not applied: %+v", cfg.Instana)
	}
}

func TestLoadInvalidIncidentID(t *testing.T) {
	clearEnv(t)
	t.Setenv("INCIDENT_ID", "abc")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Filters.IncidentID != nil {
		t.Fatalf("expected invalid incident id to be ignored")
	}
	if len(cfg.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", cfg.Warnings)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
