package authfailover

import (
	"context"
	"errors"
	"fmt"

	"github.com/nghyane/authfailover/internal/authstore"
)

// FailoverError carries a classified FailureReason alongside the
// underlying error. Only Reason == ReasonRateLimit or ReasonTimeout trigger
// the retry driver's infinite-retry path; every other reason propagates
// immediately.
type FailoverError struct {
	Reason   authstore.FailureReason
	Provider string
	ModelID  string
	Err      error
}

func (e *FailoverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failover: %s (%s): %v", e.Reason, e.Provider, e.Err)
	}
	return fmt.Sprintf("failover: %s (%s)", e.Reason, e.Provider)
}

func (e *FailoverError) Unwrap() error { return e.Err }

// Retryable reports whether the retry driver should wait and re-invoke
// execute for this error.
func (e *FailoverError) Retryable() bool {
	return e != nil && (e.Reason == authstore.ReasonRateLimit || e.Reason == authstore.ReasonTimeout)
}

// ErrAbortedDuringWait is returned by Run when cancellation fires while the
// driver is sleeping for a cooldown, distinguishing "aborted during
// cooldown wait" from a generic cancellation observed elsewhere in the
// loop.
var ErrAbortedDuringWait = errors.New("authfailover: aborted during cooldown wait")

// IsCancellation reports whether err represents either form of cancellation
// this package can return: a plain context error, or one wrapping
// ErrAbortedDuringWait.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrAbortedDuringWait)
}
