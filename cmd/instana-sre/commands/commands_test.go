package commands

import (
	"strings"
	"testing"

	"github.com/miradorstack/instana-sre/internal/config"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"prc"},
		{"alerts", "enable"},
		{"alerts", "disable"},
		{"actions", "recommend"},
		{"actions", "remediate"},
		{"serve"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected %v to resolve, got %s", path, cmd.Name())
		}
	}
}

func TestSetupRequiresCredentials(t *testing.T) {
	for _, key := range []string{"BASE_URL", "INSTANA_BASE_URL", "TOKEN", "INSTANA_API_TOKEN", "APPLICATION_ID", "INSTANA_SRE_CONFIG"} {
		t.Setenv(key, "")
	}
	configPath, envFile = "", ""

	_, err := setup(false)
	if err == nil || !strings.Contains(err.Error(), "BASE_URL") {
		t.Fatalf("expected missing BASE_URL error, got %v", err)
	}
}

func TestSetupAlertsRequiresApplication(t *testing.T) {
	for _, key := range []string{"APPLICATION_ID", "INSTANA_SRE_CONFIG", "INSTANA_BASE_URL", "INSTANA_API_TOKEN"} {
		t.Setenv(key, "")
	}
	t.Setenv("BASE_URL", "https://instana.example.com")
	t.Setenv("TOKEN", "secret")
	configPath, envFile = "", ""

	if _, err := setup(true); err == nil || !strings.Contains(err.Error(), "APPLICATION_ID") {
		t.Fatalf("expected missing APPLICATION_ID error, got %v", err)
	}

	rt, err := setup(true, func(cfg *config.Config) { cfg.Instana.ApplicationID = "app-1" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close()
	if rt.client == nil || rt.cfg.Instana.ApplicationID != "app-1" {
		t.Fatalf("unexpected runtime: %+v", rt.cfg.Instana)
	}
}
