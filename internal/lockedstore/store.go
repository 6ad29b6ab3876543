// Package lockedstore implements atomic persistence of the auth store,
// serialized across processes via an exclusive file lock, with
// read-modify-write races resolved by always re-reading the file fresh
// inside the lock.
package lockedstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/nghyane/authfailover/internal/authstore"
	authjson "github.com/nghyane/authfailover/internal/json"
	"github.com/nghyane/authfailover/internal/logging"
)

// lockPollInterval is how often Update retries acquiring the advisory file
// lock while waiting for a concurrent holder (in-process or cross-process)
// to release it.
const lockPollInterval = 50 * time.Millisecond

// Updater mutates a freshly-read snapshot and reports whether a write is
// needed.
type Updater func(fresh *authstore.Store) (mutated bool, next *authstore.Store)

// Store is a file-backed, lock-serialized AuthProfileStore.
type Store struct {
	path string
	lock *flock.Flock

	readGroup singleflight.Group

	mu     sync.Mutex // guards cached, the best-effort in-memory hint
	cached *authstore.Store
}

// Open returns a Store bound to path. The file need not exist yet; Update
// and the first Save will create it.
func Open(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(lockPath(path)),
	}
}

func lockPath(storePath string) string {
	return storePath + ".lock"
}

// Update acquires the exclusive lock, re-reads the store from disk (the
// in-memory copy may be stale), invokes updater on that fresh snapshot, and
// on mutated == true serializes and atomically replaces the file. It
// returns the resulting store, or ok == false if the updater declined or
// the read/lock step failed — in which case callers fall back to
// mutating their own handle and calling Save.
func (s *Store) Update(ctx context.Context, updater Updater) (result *authstore.Store, ok bool, err error) {
	// A fresh Flock per call gives each Update its own file descriptor, so
	// goroutines of the same process exclude each other as well.
	lock := flock.New(s.lock.Path())
	if lockErr := s.lockExclusive(ctx, lock); lockErr != nil {
		return nil, false, fmt.Errorf("lockedstore: acquire lock: %w", lockErr)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logging.Warnf("lockedstore: release lock for %s: %v", s.path, unlockErr)
		}
	}()

	fresh, readErr := s.readFresh()
	if readErr != nil {
		return nil, false, fmt.Errorf("lockedstore: read: %w", readErr)
	}

	mutated, next := updater(fresh)
	if !mutated {
		return nil, false, nil
	}
	if next == nil {
		next = fresh
	}
	if writeErr := s.atomicWrite(next); writeErr != nil {
		return nil, false, fmt.Errorf("lockedstore: write: %w", writeErr)
	}

	s.mu.Lock()
	s.cached = next
	s.mu.Unlock()
	return next, true, nil
}

// Save is the fallback write path used only when locking is unavailable: a
// straightforward atomic write of store, with no fresh-read and no
// serialization against concurrent writers. This fallback is best-effort
// and can resurrect state a concurrent deletion just removed.
func (s *Store) Save(store *authstore.Store) error {
	s.mu.Lock()
	s.cached = store
	s.mu.Unlock()
	return s.atomicWrite(store)
}

// lockExclusive blocks until the lock is acquired or ctx is cancelled,
// polling at lockPollInterval so acquisition itself is interruptible.
func (s *Store) lockExclusive(ctx context.Context, lock *flock.Flock) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	for {
		locked, err := lock.TryLockContext(ctx, lockPollInterval)
		if err != nil {
			return err
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// readFresh loads the current on-disk document, coalescing concurrent
// callers (who are about to pay for the same disk read while each holds, or
// is about to hold, the same lock serially) via singleflight.
func (s *Store) readFresh() (*authstore.Store, error) {
	v, err, _ := s.readGroup.Do(s.path, func() (any, error) {
		return load(s.path)
	})
	if err != nil {
		return nil, err
	}
	store := v.(*authstore.Store)
	return store.Clone(), nil
}

func load(path string) (*authstore.Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return authstore.NewStore(), nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return authstore.NewStore(), nil
	}
	var store authstore.Store
	if err := authjson.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", path, err)
	}
	if store.Version != authstore.StoreVersion {
		return nil, fmt.Errorf("store %s: unsupported version %d", path, store.Version)
	}
	return &store, nil
}

// Cached returns the last store handled by Update or Save, for callers that
// want a best-effort snapshot without going through the lock. It may be
// stale and must be treated as a hint, not authoritative state.
func (s *Store) Cached() *authstore.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached
}
