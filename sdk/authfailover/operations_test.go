package authfailover

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nghyane/authfailover/internal/authstore"
	"github.com/nghyane/authfailover/internal/cooldown"
	"github.com/nghyane/authfailover/internal/lockedstore"
)

func newTestManager(t *testing.T, clock func() time.Time) (*Manager, *lockedstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store := lockedstore.Open(filepath.Join(dir, "store.json"))
	_, _, err := store.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		fresh.Profiles["p1"] = &authstore.Credential{Type: authstore.CredentialAPIKey, Provider: "anthropic"}
		return true, fresh
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	mgr := NewManager(store, cooldown.DefaultConfig(), WithClock(clock))
	return mgr, store
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestManager_MarkFailure_RateLimit(t *testing.T) {
	mgr, _ := newTestManager(t, fixedClock(0))
	if err := mgr.MarkFailure(context.Background(), "p1", authstore.ReasonRateLimit, "", nil); err != nil {
		t.Fatalf("markFailure: %v", err)
	}
	stats := mgr.Stats("p1")
	if stats == nil || stats.ErrorCount != 1 || stats.CooldownUntil != 60_000 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !mgr.IsInCooldown("p1", "") {
		t.Error("expected p1 to be in cooldown")
	}
}

func TestManager_MarkUsed_ClearsCooldown(t *testing.T) {
	mgr, _ := newTestManager(t, fixedClock(0))
	mgr.MarkFailure(context.Background(), "p1", authstore.ReasonRateLimit, "", nil)
	if err := mgr.MarkUsed(context.Background(), "p1", ""); err != nil {
		t.Fatalf("markUsed: %v", err)
	}
	if mgr.IsInCooldown("p1", "") {
		t.Error("expected cooldown cleared after markUsed")
	}
	stats := mgr.Stats("p1")
	if stats.ErrorCount != 0 {
		t.Errorf("errorCount = %d, want 0", stats.ErrorCount)
	}
}

func TestManager_MarkFailure_MissingProfileIsNoOp(t *testing.T) {
	mgr, _ := newTestManager(t, fixedClock(0))
	err := mgr.MarkFailure(context.Background(), "ghost", authstore.ReasonRateLimit, "", nil)
	if err != nil {
		t.Fatalf("expected silent handling of missing profile, got %v", err)
	}
}

func TestManager_ClearCooldown_PreservesDisabled(t *testing.T) {
	mgr, _ := newTestManager(t, fixedClock(0))
	mgr.MarkFailure(context.Background(), "p1", authstore.ReasonBilling, "", nil)
	mgr.MarkFailure(context.Background(), "p1", authstore.ReasonRateLimit, "", nil)

	if err := mgr.ClearCooldown(context.Background(), "p1", ""); err != nil {
		t.Fatalf("clearCooldown: %v", err)
	}
	stats := mgr.Stats("p1")
	if stats.CooldownUntil != 0 {
		t.Errorf("expected cooldownUntil cleared, got %d", stats.CooldownUntil)
	}
	if stats.DisabledUntil == 0 || stats.DisabledReason != authstore.ReasonBilling {
		t.Errorf("expected disabled state preserved, got %+v", stats)
	}
}

func TestManager_MarkCooldown_IsRateLimitConvenience(t *testing.T) {
	mgr, _ := newTestManager(t, fixedClock(0))
	if err := mgr.MarkCooldown(context.Background(), "p1", "", nil); err != nil {
		t.Fatalf("markCooldown: %v", err)
	}
	stats := mgr.Stats("p1")
	if stats.CooldownUntil != 60_000 {
		t.Errorf("cooldownUntil = %d, want 60000", stats.CooldownUntil)
	}
}
