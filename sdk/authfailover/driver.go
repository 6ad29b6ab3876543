package authfailover

import (
	"context"
	"time"

	"github.com/nghyane/authfailover/internal/eligibility"
	"github.com/nghyane/authfailover/internal/logging"
)

// defaultQuotaWait is used when no candidate set is supplied to Run.
const defaultQuotaWait = 60 * time.Second

// QuotaExhaustionEvent is passed to RunOptions.OnQuotaExhaustion before each
// cooldown sleep.
type QuotaExhaustionEvent struct {
	Provider string
	Model    string
	WaitMs   int64
	Attempt  int
}

// CandidateSource lazily produces the current set of profile candidates for
// a (provider, model) pair, so Run always sees fresh eligibility state
// rather than a snapshot captured before the first attempt.
type CandidateSource func() []eligibility.Candidate

// RunOptions configures the infinite retry driver.
type RunOptions struct {
	// Candidates, if set, lets Run compute the minimum eligible wait across
	// the caller's actual candidate pool instead of falling back to
	// defaultQuotaWait.
	Candidates CandidateSource
	// OnQuotaExhaustion is invoked before each cooldown sleep; if nil, a
	// warning is logged instead.
	OnQuotaExhaustion func(QuotaExhaustionEvent)
	// Clock overrides time.Now, for deterministic tests.
	Clock func() time.Time
}

func (o RunOptions) clock() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

// Run is the infinite-retry driver. execute is invoked
// repeatedly; a *FailoverError with a retryable reason (rate_limit or
// timeout) causes Run to sleep until the earliest candidate becomes
// eligible (or defaultQuotaWait, absent a candidate source) and retry.
// Every other error — including a non-retryable FailoverError — propagates
// immediately. There is no retry budget: Run only returns on success,
// cancellation, or a non-qualifying error.
func Run[R any](ctx context.Context, execute func(ctx context.Context, attempt int) (R, error), opts RunOptions) (R, error) {
	var zero R
	attempt := 0
	for {
		attempt++

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := execute(ctx, attempt)
		if err == nil {
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, err
		}

		fe, isFailover := err.(*FailoverError)
		if !isFailover || !fe.Retryable() {
			return zero, err
		}

		waitMs := computeWait(opts, fe)
		notifyQuotaExhaustion(opts, fe, waitMs, attempt)

		if sleepErr := sleepWithAbort(ctx, time.Duration(waitMs)*time.Millisecond); sleepErr != nil {
			return zero, sleepErr
		}
	}
}

func computeWait(opts RunOptions, fe *FailoverError) int64 {
	if opts.Candidates == nil {
		return defaultQuotaWait.Milliseconds()
	}
	candidates := opts.Candidates()
	wait, found := eligibility.MinEligibleWait(candidates, opts.clock())
	if !found {
		return defaultQuotaWait.Milliseconds()
	}
	return wait.Milliseconds()
}

func notifyQuotaExhaustion(opts RunOptions, fe *FailoverError, waitMs int64, attempt int) {
	event := QuotaExhaustionEvent{
		Provider: fe.Provider,
		Model:    fe.ModelID,
		WaitMs:   waitMs,
		Attempt:  attempt,
	}
	if opts.OnQuotaExhaustion != nil {
		opts.OnQuotaExhaustion(event)
		return
	}
	logging.Warnf("authfailover: quota exhausted for provider=%s model=%s, waiting %dms (attempt %d)",
		event.Provider, event.Model, event.WaitMs, event.Attempt)
}

// sleepWithAbort blocks for wait, waking early and returning
// ErrAbortedDuringWait (wrapping ctx.Err()) if ctx is cancelled first. It
// unregisters its timer on every exit path.
func sleepWithAbort(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		if err := ctx.Err(); err != nil {
			return &cancelledDuringWaitError{cause: err}
		}
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &cancelledDuringWaitError{cause: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

// cancelledDuringWaitError wraps the underlying context error so callers can
// distinguish "aborted during cooldown wait" from a cancellation observed
// elsewhere in the loop, while errors.Is(err, ErrAbortedDuringWait) and
// errors.Is(err, context.Canceled) both still hold.
type cancelledDuringWaitError struct {
	cause error
}

func (e *cancelledDuringWaitError) Error() string {
	return ErrAbortedDuringWait.Error() + ": " + e.cause.Error()
}

func (e *cancelledDuringWaitError) Unwrap() []error {
	return []error{ErrAbortedDuringWait, e.cause}
}
