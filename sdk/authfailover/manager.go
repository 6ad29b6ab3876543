// Package authfailover is the public surface of the failover core: the
// failure-reason classifier surface (*Manager's Mark* methods) and the
// infinite-retry driver (Run), built on top of internal/lockedstore,
// internal/usagestats, internal/eligibility, and internal/cooldown.
package authfailover

import (
	"context"
	"time"

	"github.com/nghyane/authfailover/internal/audit"
	"github.com/nghyane/authfailover/internal/authstore"
	"github.com/nghyane/authfailover/internal/cooldown"
	"github.com/nghyane/authfailover/internal/eligibility"
	"github.com/nghyane/authfailover/internal/lockedstore"
	"github.com/nghyane/authfailover/internal/logging"
)

// Manager is the public entry point for markUsed, markFailure,
// markCooldown, and clearCooldown, all serialized through a lockedstore.Store.
type Manager struct {
	store *lockedstore.Store
	cfg   cooldown.Config
	clock func() time.Time
	sink  audit.Sink
}

// Option customizes a Manager at construction time.
type Option func(*Manager)

// WithClock overrides the clock used for `now`, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithAuditSink attaches a peripheral audit trail. Entirely optional: a
// Manager with no sink configured behaves identically.
func WithAuditSink(sink audit.Sink) Option {
	return func(m *Manager) { m.sink = sink }
}

// NewManager builds a Manager over a store already opened at a path via
// lockedstore.Open, with the given resolved cooldown config.
func NewManager(store *lockedstore.Store, cfg cooldown.Config, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		cfg:   cfg,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetConfig hot-swaps the resolved cooldown config, e.g. from
// config.WatchCooldownConfig's onChange callback.
func (m *Manager) SetConfig(cfg cooldown.Config) {
	m.cfg = cfg
}

func (m *Manager) now() time.Time {
	if m.clock != nil {
		return m.clock()
	}
	return time.Now()
}

// Stats returns the best-effort, possibly-stale usage stats for profileID,
// read from the manager's in-memory hint rather than the locked store.
// Callers must treat this as a hint, not authoritative state.
func (m *Manager) Stats(profileID string) *authstore.ProfileUsageStats {
	snapshot := m.store.Cached()
	if snapshot == nil || snapshot.Usage == nil {
		return nil
	}
	return snapshot.Usage[profileID]
}

// IsInCooldown reports whether profileID is currently ineligible for
// modelID, using the manager's best-effort in-memory snapshot.
func (m *Manager) IsInCooldown(profileID, modelID string) bool {
	return eligibility.IsInCooldown(m.Stats(profileID), modelID, m.now())
}

func (m *Manager) recordAudit(ctx context.Context, profileID, modelID string, reason authstore.FailureReason, waitMs int64, attempt int) {
	if m.sink == nil {
		return
	}
	m.sink.Record(ctx, audit.Event{
		At:        m.now(),
		ProfileID: profileID,
		ModelID:   modelID,
		Reason:    reason,
		WaitMs:    waitMs,
		Attempt:   attempt,
	})
}

// applyUpdate is the shared plumbing behind every Mark* entry point: it
// builds a lockedstore.Updater around mutate, runs it through the locked
// store, and falls back to mutating the manager's in-memory handle directly
// and saving it unlocked when the updater declines or the locked update
// otherwise fails. That fallback can resurrect a deleted profile's stats —
// a known gap, preserved deliberately rather than fixed silently.
func (m *Manager) applyUpdate(ctx context.Context, profileID string, mutate func(existing *authstore.ProfileUsageStats) *authstore.ProfileUsageStats) error {
	updater := func(fresh *authstore.Store) (bool, *authstore.Store) {
		if _, exists := fresh.Profiles[profileID]; !exists {
			return false, nil
		}
		if fresh.Usage == nil {
			fresh.Usage = make(map[string]*authstore.ProfileUsageStats)
		}
		fresh.Usage[profileID] = mutate(fresh.Usage[profileID])
		return true, fresh
	}

	result, ok, err := m.store.Update(ctx, updater)
	if ok {
		_ = result
		return nil
	}
	if err != nil {
		logging.WithError(err).Warn("authfailover: locked update failed, falling back to in-memory save")
	}

	handle := m.store.Cached()
	if handle == nil {
		handle = authstore.NewStore()
	} else {
		handle = handle.Clone()
	}
	if handle.Usage == nil {
		handle.Usage = make(map[string]*authstore.ProfileUsageStats)
	}
	handle.Usage[profileID] = mutate(handle.Usage[profileID])
	return m.store.Save(handle)
}
