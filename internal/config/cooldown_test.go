package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCooldownConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadCooldownConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BillingBackoff != 5*time.Hour || cfg.BillingMax != 24*time.Hour {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadCooldownConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cooldowns.yaml")
	contents := `
auth:
  cooldowns:
    billingBackoffHours: 2
    billingMaxHours: 12
    failureWindowHours: 6
    billingBackoffHoursByProvider:
      anthropic: 1
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadCooldownConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BillingBackoff != 2*time.Hour {
		t.Errorf("billingBackoff = %v, want 2h", cfg.BillingBackoff)
	}
	if cfg.BillingMax != 12*time.Hour {
		t.Errorf("billingMax = %v, want 12h", cfg.BillingMax)
	}
	if cfg.FailureWindow != 6*time.Hour {
		t.Errorf("failureWindow = %v, want 6h", cfg.FailureWindow)
	}
	if got := cfg.BillingBackoffByProvider["anthropic"]; got != time.Hour {
		t.Errorf("anthropic override = %v, want 1h", got)
	}
}

func TestLoadCooldownConfig_InvalidValuesFallThroughToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cooldowns.yaml")
	contents := `
auth:
  cooldowns:
    billingBackoffHours: -1
`
	os.WriteFile(path, []byte(contents), 0o600)

	cfg, err := LoadCooldownConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BillingBackoff != 5*time.Hour {
		t.Errorf("expected default billingBackoff for invalid value, got %v", cfg.BillingBackoff)
	}
}
