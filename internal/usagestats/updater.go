// Package usagestats provides the pure transition functions that compute
// the next ProfileUsageStats given the current stats, a failure reason,
// the clock, and a resolved cooldown config.
package usagestats

import (
	"time"

	"github.com/nghyane/authfailover/internal/authstore"
	"github.com/nghyane/authfailover/internal/cooldown"
)

// Input bundles the arguments to OnFailure other than the existing stats:
// now, the failure reason, the resolved cooldown config, the optional model
// and retry-after hint, and the provider used to pick billing overrides.
type Input struct {
	Now          time.Time
	Reason       authstore.FailureReason
	Config       cooldown.Config
	ModelID      string
	RetryAfterMs *int64
	Provider     string
}

// OnFailure returns the stats to persist after a failed call through a
// profile. It dispatches across three branches in order: billing
// (profile-wide, structural), model-scoped rate_limit/timeout, and the
// profile-wide fallback for everything else.
func OnFailure(existing *authstore.ProfileUsageStats, in Input) *authstore.ProfileUsageStats {
	stats := cloneOrNew(existing)
	now := in.Now.UnixMilli()

	windowExpired := false
	if lastFailure, ok := authstore.PositiveOrAbsent(stats.LastFailureAt); ok {
		windowExpired = in.Now.Sub(time.UnixMilli(lastFailure)) > in.Config.FailureWindow
	}

	switch {
	case in.Reason == authstore.ReasonBilling:
		return onBillingFailure(stats, in, now, windowExpired)
	case in.ModelID != "" && (in.Reason == authstore.ReasonRateLimit || in.Reason == authstore.ReasonTimeout):
		return onModelScopedFailure(stats, in, now)
	default:
		return onProfileWideFailure(stats, in, now, windowExpired)
	}
}

func onBillingFailure(stats *authstore.ProfileUsageStats, in Input, now int64, windowExpired bool) *authstore.ProfileUsageStats {
	counts := stats.FailureCounts
	if windowExpired || counts == nil {
		counts = make(map[authstore.FailureReason]int64)
	} else {
		copied := make(map[authstore.FailureReason]int64, len(counts))
		for k, v := range counts {
			copied[k] = v
		}
		counts = copied
	}
	counts[authstore.ReasonBilling]++

	base, maxMs := in.Config.BillingParamsFor(in.Provider)
	backoff := cooldown.BillingBackoff(counts[authstore.ReasonBilling], base, maxMs)

	stats.FailureCounts = counts
	stats.DisabledUntil = now + backoff.Milliseconds()
	stats.DisabledReason = authstore.ReasonBilling
	stats.LastFailureAt = now
	return stats
}

func onModelScopedFailure(stats *authstore.ProfileUsageStats, in Input, now int64) *authstore.ProfileUsageStats {
	model := stats.EnsureModel(in.ModelID)
	model.ErrorCount++

	var backoff time.Duration
	if in.RetryAfterMs != nil {
		backoff = time.Duration(*in.RetryAfterMs) * time.Millisecond
	} else {
		backoff = cooldown.RateLimitBackoff(model.ErrorCount)
	}

	model.CooldownUntil = now + backoff.Milliseconds()
	model.LastFailureAt = now
	// Profile-wide errorCount is explicitly untouched for model-scoped penalties.
	return stats
}

func onProfileWideFailure(stats *authstore.ProfileUsageStats, in Input, now int64, windowExpired bool) *authstore.ProfileUsageStats {
	base := stats.ErrorCount
	if windowExpired {
		base = 0
	}
	next := base + 1

	var backoff time.Duration
	if in.RetryAfterMs != nil {
		backoff = time.Duration(*in.RetryAfterMs) * time.Millisecond
	} else {
		backoff = cooldown.RateLimitBackoff(next)
	}

	stats.ErrorCount = next
	stats.CooldownUntil = now + backoff.Milliseconds()
	stats.LastFailureAt = now
	return stats
}

// OnSuccess implements markUsed: clears all error/cooldown state and stamps
// lastUsed, optionally scoping the per-model reset to modelID.
func OnSuccess(existing *authstore.ProfileUsageStats, now time.Time, modelID string) *authstore.ProfileUsageStats {
	stats := cloneOrNew(existing)
	nowMs := now.UnixMilli()

	stats.ErrorCount = 0
	stats.CooldownUntil = 0
	stats.DisabledUntil = 0
	stats.DisabledReason = ""
	stats.FailureCounts = nil
	stats.LastUsed = nowMs

	if modelID != "" {
		model := stats.EnsureModel(modelID)
		model.ErrorCount = 0
		model.CooldownUntil = 0
		model.LastUsed = nowMs
	}
	return stats
}

// OnClear implements clearCooldown's manual-reset semantics: scoped to a
// model, it only touches that model's cooldown/errorCount; unscoped, it
// clears only the profile-wide cooldown/errorCount, explicitly leaving
// disabledUntil, disabledReason, failureCounts, and modelStats intact.
func OnClear(existing *authstore.ProfileUsageStats, modelID string) *authstore.ProfileUsageStats {
	stats := cloneOrNew(existing)
	if modelID != "" {
		if model, ok := stats.ModelStats[modelID]; ok && model != nil {
			model.ErrorCount = 0
			model.CooldownUntil = 0
		}
		return stats
	}
	stats.ErrorCount = 0
	stats.CooldownUntil = 0
	return stats
}

func cloneOrNew(existing *authstore.ProfileUsageStats) *authstore.ProfileUsageStats {
	if existing == nil {
		return &authstore.ProfileUsageStats{}
	}
	c := *existing
	if existing.FailureCounts != nil {
		c.FailureCounts = make(map[authstore.FailureReason]int64, len(existing.FailureCounts))
		for k, v := range existing.FailureCounts {
			c.FailureCounts[k] = v
		}
	}
	if existing.ModelStats != nil {
		c.ModelStats = make(map[string]*authstore.ModelUsageStats, len(existing.ModelStats))
		for k, v := range existing.ModelStats {
			vv := *v
			c.ModelStats[k] = &vv
		}
	}
	return &c
}
