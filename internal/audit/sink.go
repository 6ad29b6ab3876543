// Package audit provides an optional, peripheral quota-breach audit trail.
// It sits outside the failover core's contract; a *sdk/authfailover.Manager
// works identically with no sink configured.
package audit

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
	"golang.org/x/time/rate"

	"github.com/nghyane/authfailover/internal/authstore"
	"github.com/nghyane/authfailover/internal/logging"
)

// Sink records a profile disablement or cooldown event for later
// inspection. Implementations must not block the caller for long; Manager
// invokes Record synchronously but Sink implementations are expected to be
// fast or to buffer internally.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// Event is one row of the audit trail.
type Event struct {
	At         time.Time
	ProfileID  string
	ModelID    string
	Reason     authstore.FailureReason
	WaitMs     int64
	Attempt    int
}

// SQLiteSink persists Events to a pure-Go sqlite database (modernc.org/sqlite,
// no cgo), throttled so a thundering herd of simultaneous cooldowns cannot
// turn the audit trail into its own bottleneck.
type SQLiteSink struct {
	db      *sql.DB
	limiter *rate.Limiter
}

// NewSQLiteSink opens (creating if absent) a sqlite database at path and
// prepares its schema. ratePerSecond bounds how many events per second are
// actually written; excess events are dropped and logged at debug level.
func NewSQLiteSink(path string, ratePerSecond float64) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS quota_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at INTEGER NOT NULL,
	profile_id TEXT NOT NULL,
	model_id TEXT,
	reason TEXT NOT NULL,
	wait_ms INTEGER NOT NULL,
	attempt INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	return &SQLiteSink{
		db:      db,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}, nil
}

// Record implements Sink. A denied reservation (over the rate limit) is
// dropped rather than blocking the caller.
func (s *SQLiteSink) Record(ctx context.Context, event Event) {
	if s == nil || s.db == nil {
		return
	}
	if !s.limiter.Allow() {
		logging.Debugf("audit: dropping event for %s, over rate limit", event.ProfileID)
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quota_events (at, profile_id, model_id, reason, wait_ms, attempt) VALUES (?, ?, ?, ?, ?, ?)`,
		event.At.UnixMilli(), event.ProfileID, event.ModelID, string(event.Reason), event.WaitMs, event.Attempt,
	)
	if err != nil {
		logging.WithError(err).Warn("audit: insert event")
	}
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
