package authfailover

import (
	"context"

	"github.com/nghyane/authfailover/internal/authstore"
	"github.com/nghyane/authfailover/internal/eligibility"
	"github.com/nghyane/authfailover/internal/usagestats"
)

// MarkUsed implements markUsed: reset error/cooldown state for profileID
// after a successful call, additionally resetting modelID's state when
// non-empty. Never errors for a missing profile — the updater silently
// declines and the fallback path still records the reset.
func (m *Manager) MarkUsed(ctx context.Context, profileID, modelID string) error {
	now := m.now()
	return m.applyUpdate(ctx, profileID, func(existing *authstore.ProfileUsageStats) *authstore.ProfileUsageStats {
		return usagestats.OnSuccess(existing, now, modelID)
	})
}

// MarkFailure is the umbrella operation used by every non-success path: it
// dispatches to the billing / model-scoped / profile-wide stats transition
// based on reason and whether modelID is present.
func (m *Manager) MarkFailure(ctx context.Context, profileID string, reason authstore.FailureReason, modelID string, retryAfterMs *int64) error {
	now := m.now()
	provider := m.providerFor(profileID)
	err := m.applyUpdate(ctx, profileID, func(existing *authstore.ProfileUsageStats) *authstore.ProfileUsageStats {
		return usagestats.OnFailure(existing, usagestats.Input{
			Now:          now,
			Reason:       reason,
			Config:       m.cfg,
			ModelID:      modelID,
			RetryAfterMs: retryAfterMs,
			Provider:     provider,
		})
	})
	if err == nil && (reason == authstore.ReasonRateLimit || reason == authstore.ReasonTimeout || reason == authstore.ReasonBilling) {
		waitMs := int64(0)
		if until, ok := m.untilFor(profileID, modelID); ok {
			waitMs = until - now.UnixMilli()
		}
		m.recordAudit(ctx, profileID, modelID, reason, waitMs, 0)
	}
	return err
}

// MarkCooldown is a convenience equivalent to MarkFailure with
// reason == "rate_limit".
func (m *Manager) MarkCooldown(ctx context.Context, profileID, modelID string, retryAfterMs *int64) error {
	return m.MarkFailure(ctx, profileID, authstore.ReasonRateLimit, modelID, retryAfterMs)
}

// ClearCooldown implements a manual cooldown reset: scoped to modelID when
// non-empty, otherwise touching only the profile-wide cooldown/errorCount.
func (m *Manager) ClearCooldown(ctx context.Context, profileID, modelID string) error {
	return m.applyUpdate(ctx, profileID, func(existing *authstore.ProfileUsageStats) *authstore.ProfileUsageStats {
		return usagestats.OnClear(existing, modelID)
	})
}

func (m *Manager) providerFor(profileID string) string {
	snapshot := m.store.Cached()
	if snapshot == nil || snapshot.Profiles == nil {
		return ""
	}
	if cred, ok := snapshot.Profiles[profileID]; ok && cred != nil {
		return cred.Provider
	}
	return ""
}

func (m *Manager) untilFor(profileID, modelID string) (int64, bool) {
	stats := m.Stats(profileID)
	if stats == nil {
		return 0, false
	}
	return eligibility.ResolveUnusableUntil(stats, modelID)
}
