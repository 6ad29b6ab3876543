// Package cooldown implements the pure backoff functions that map an error
// count and a resolved policy into a cooldown duration, plus the config
// type those policies come from.
package cooldown

import (
	"math"
	"time"

	"github.com/nghyane/authfailover/internal/authstore"
)

const (
	rateLimitBase = 60 * time.Second
	rateLimitCap  = time.Hour
	rateLimitMaxN = 4 // min(n-1, 3) saturates at n=4
)

// RateLimitBackoff computes the rate-limit/timeout backoff for the n-th
// consecutive error (n >= 1): min(1h, 60s * 5^min(n-1,3)), yielding
// 60s, 300s, 1500s, 3600s, 3600s, ...
func RateLimitBackoff(n int64) time.Duration {
	if n <= 0 {
		n = 1
	}
	exp := n - 1
	if exp > 3 {
		exp = 3
	}
	factor := math.Pow(5, float64(exp))
	d := time.Duration(float64(rateLimitBase) * factor)
	if d > rateLimitCap || d <= 0 {
		return rateLimitCap
	}
	return d
}

// BillingBackoff computes the billing backoff for the n-th consecutive
// billing failure: min(maxMs, max(60s, baseMs) * 2^min(n-1,10)). maxMs is
// clamped up to at least the (clamped) base.
func BillingBackoff(n int64, base, max time.Duration) time.Duration {
	if n <= 0 {
		n = 1
	}
	if base < 60*time.Second {
		base = 60 * time.Second
	}
	if max < base {
		max = base
	}
	exp := n - 1
	if exp > 10 {
		exp = 10
	}
	factor := math.Pow(2, float64(exp))
	d := time.Duration(float64(base) * factor)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// Config is the resolved (validated, defaulted) cooldown policy, matching
// the `auth.cooldowns.*` keys in the external configuration document.
type Config struct {
	BillingBackoff           time.Duration
	BillingMax               time.Duration
	FailureWindow            time.Duration
	BillingBackoffByProvider map[string]time.Duration
}

// DefaultConfig returns the built-in defaults: 5h billing backoff, 24h
// billing cap, 24h failure window.
func DefaultConfig() Config {
	return Config{
		BillingBackoff: 5 * time.Hour,
		BillingMax:     24 * time.Hour,
		FailureWindow:  24 * time.Hour,
	}
}

// BillingParamsFor resolves (base, max) for provider, applying the
// per-provider override table keyed by authstore.NormalizeProvider when
// present.
func (c Config) BillingParamsFor(provider string) (base, max time.Duration) {
	base, max = c.BillingBackoff, c.BillingMax
	if c.BillingBackoffByProvider == nil {
		return base, max
	}
	key := authstore.NormalizeProvider(provider)
	if override, ok := c.BillingBackoffByProvider[key]; ok && override > 0 {
		base = override
	}
	return base, max
}
