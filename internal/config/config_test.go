package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesDefaults(t *testing.T) {
	t.Setenv("SARAL_CONFIG_FILE", "")
	t.Setenv("API_PORT", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("MAX_IN_FLIGHT", "")
	t.Setenv("MAX_IN_FLIGHT_WAIT_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port 8080, got %q", cfg.APIPort)
	}
	if cfg.NATSSubject != "documents.analyze" {
		t.Fatalf("expected default subject documents.analyze, got %q", cfg.NATSSubject)
	}
	if cfg.RateLimitRPS != 10 {
		t.Fatalf("expected default rate limit 10, got %d", cfg.RateLimitRPS)
	}
	if cfg.StorageBackend != "local" {
		t.Fatalf("expected default storage backend local, got %q", cfg.StorageBackend)
	}
	if cfg.MaxInFlight != 64 {
		t.Fatalf("expected default max in flight 64, got %d", cfg.MaxInFlight)
	}
	if cfg.MaxInFlightWaitMS != 250 {
		t.Fatalf("expected default in flight wait 250ms, got %d", cfg.MaxInFlightWaitMS)
	}
}

func TestLoadFileOverlayFillsUnsetVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saral.yaml")
	content := "API_PORT: \"9999\"\nGATEWAY_MODEL: saral-v2\nRATE_LIMIT_BURST: \"40\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("SARAL_CONFIG_FILE", path)
	t.Setenv("API_PORT", "7777")
	t.Setenv("GATEWAY_MODEL", "")
	t.Setenv("RATE_LIMIT_BURST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "7777" {
		t.Fatalf("environment must win over file, got %q", cfg.APIPort)
	}
	if cfg.GatewayModel != "saral-v2" {
		t.Fatalf("expected file value saral-v2, got %q", cfg.GatewayModel)
	}
	if cfg.RateLimitBurst != 40 {
		t.Fatalf("expected file value 40, got %d", cfg.RateLimitBurst)
	}
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	t.Setenv("SARAL_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
