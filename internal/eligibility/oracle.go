// Package eligibility provides pure functions answering "is profile P
// usable for model M at time T?" and "when does it next become usable?".
package eligibility

import (
	"time"

	"github.com/nghyane/authfailover/internal/authstore"
)

// ResolveUnusableUntil returns the effective unusable-until timestamp (ms
// since epoch) for stats, considering cooldownUntil, disabledUntil, and (if
// modelID is non-empty) modelStats[modelID].cooldownUntil — restricted to
// present, strictly-positive values. The second
// return is false if no such value exists (the profile is eligible).
func ResolveUnusableUntil(stats *authstore.ProfileUsageStats, modelID string) (int64, bool) {
	if stats == nil {
		return 0, false
	}
	var max int64
	found := false
	consider := func(ms int64) {
		if v, ok := authstore.PositiveOrAbsent(ms); ok {
			if !found || v > max {
				max = v
				found = true
			}
		}
	}
	consider(stats.CooldownUntil)
	consider(stats.DisabledUntil)
	if modelID != "" && stats.ModelStats != nil {
		if model, ok := stats.ModelStats[modelID]; ok && model != nil {
			consider(model.CooldownUntil)
		}
	}
	return max, found
}

// IsInCooldown reports whether the profile is currently unusable at now.
func IsInCooldown(stats *authstore.ProfileUsageStats, modelID string, now time.Time) bool {
	until, ok := ResolveUnusableUntil(stats, modelID)
	if !ok {
		return false
	}
	return until > now.UnixMilli()
}

// Candidate pairs a profile's usage stats with the model scope the caller
// is evaluating it for, for use with MinEligibleWait.
type Candidate struct {
	ProfileID string
	Stats     *authstore.ProfileUsageStats
	ModelID   string
}

// MinEligibleWait returns the smallest wait, in milliseconds, until any
// candidate becomes eligible at now — 0 if at least one candidate already
// is. The second return is false only when candidates is empty.
func MinEligibleWait(candidates []Candidate, now time.Time) (time.Duration, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	nowMs := now.UnixMilli()
	var min time.Duration
	found := false
	for _, c := range candidates {
		until, ok := ResolveUnusableUntil(c.Stats, c.ModelID)
		if !ok || until <= nowMs {
			return 0, true
		}
		wait := time.Duration(until-nowMs) * time.Millisecond
		if !found || wait < min {
			min = wait
			found = true
		}
	}
	return min, found
}
