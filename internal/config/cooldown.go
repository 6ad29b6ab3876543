// Package config loads the operator-facing configuration subset this
// module's ambient stack depends on: the cooldown policy. Parsing and
// watching the config file is a collaborator to the failover core, not part
// of it — the core only ever sees the already-resolved cooldown.Config.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/nghyane/authfailover/internal/authstore"
	"github.com/nghyane/authfailover/internal/cooldown"
)

// File is the on-disk shape of the `auth.cooldowns.*` subset described in
// the external interfaces: hours rather than durations, because that's the
// unit operators write by hand.
type File struct {
	Auth struct {
		Cooldowns struct {
			BillingBackoffHours          *float64           `yaml:"billingBackoffHours" json:"billingBackoffHours"`
			BillingMaxHours               *float64           `yaml:"billingMaxHours" json:"billingMaxHours"`
			FailureWindowHours            *float64           `yaml:"failureWindowHours" json:"failureWindowHours"`
			BillingBackoffHoursByProvider map[string]float64 `yaml:"billingBackoffHoursByProvider" json:"billingBackoffHoursByProvider"`
		} `yaml:"cooldowns" json:"cooldowns"`
	} `yaml:"auth" json:"auth"`
}

// LoadCooldownConfig reads path (YAML, or JSON-with-comments via hujson —
// detected by extension), applies environment overrides loaded via
// godotenv, validates every numeric value as positive and finite, and
// resolves the result into a cooldown.Config. Invalid or absent values fall
// through to cooldown.DefaultConfig.
func LoadCooldownConfig(path string) (cooldown.Config, error) {
	resolved := cooldown.DefaultConfig()
	if path == "" {
		return resolved, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return resolved, nil
	}
	if err != nil {
		return resolved, err
	}

	var file File
	if strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".jsonc") {
		std, stdErr := hujson.Standardize(data)
		if stdErr != nil {
			return resolved, stdErr
		}
		if parseErr := yaml.Unmarshal(std, &file); parseErr != nil {
			return resolved, parseErr
		}
	} else if parseErr := yaml.Unmarshal(data, &file); parseErr != nil {
		return resolved, parseErr
	}

	applyEnvOverrides(&file)
	return resolve(file), nil
}

// applyEnvOverrides lets a .env file in the working directory (loaded via godotenv, never
// mutating the process environment that's already set) tweak the billing
// backoff hours without editing the checked-in config file.
func applyEnvOverrides(file *File) {
	envFile, err := godotenv.Read(".env")
	if err != nil {
		return
	}
	if raw, ok := envFile["AUTH_COOLDOWNS_BILLING_BACKOFF_HOURS"]; ok {
		if v, ok := parsePositiveHours(raw); ok {
			file.Auth.Cooldowns.BillingBackoffHours = &v
		}
	}
}

func resolve(file File) cooldown.Config {
	resolved := cooldown.DefaultConfig()

	if h, ok := validHours(file.Auth.Cooldowns.BillingBackoffHours); ok {
		resolved.BillingBackoff = hoursToDuration(h)
	}
	if h, ok := validHours(file.Auth.Cooldowns.BillingMaxHours); ok {
		resolved.BillingMax = hoursToDuration(h)
	}
	if h, ok := validHours(file.Auth.Cooldowns.FailureWindowHours); ok {
		resolved.FailureWindow = hoursToDuration(h)
	}
	if len(file.Auth.Cooldowns.BillingBackoffHoursByProvider) > 0 {
		resolved.BillingBackoffByProvider = make(map[string]time.Duration, len(file.Auth.Cooldowns.BillingBackoffHoursByProvider))
		for provider, hours := range file.Auth.Cooldowns.BillingBackoffHoursByProvider {
			if h, ok := validHours(&hours); ok {
				resolved.BillingBackoffByProvider[authstore.NormalizeProvider(provider)] = hoursToDuration(h)
			}
		}
	}
	return resolved
}

func validHours(h *float64) (float64, bool) {
	if h == nil || *h <= 0 || math.IsInf(*h, 0) || math.IsNaN(*h) {
		return 0, false
	}
	return *h, true
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

func parsePositiveHours(raw string) (float64, bool) {
	var v float64
	_, err := fmt.Sscan(raw, &v)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
