package authfailover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nghyane/authfailover/internal/authstore"
	"github.com/nghyane/authfailover/internal/eligibility"
)

// A rate-limit FailoverError on the first attempt, with a single candidate
// in cooldown, should make the driver wait for that cooldown and then
// succeed on the second attempt.
func TestRun_RetriesThenSucceeds(t *testing.T) {
	start := time.Now()
	cooldownUntil := start.Add(120 * time.Millisecond).UnixMilli()

	attempts := 0
	result, err := Run(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		attempts = attempt
		if attempt == 1 {
			return "", &FailoverError{Reason: authstore.ReasonRateLimit, Provider: "anthropic"}
		}
		return "ok", nil
	}, RunOptions{
		Candidates: func() []eligibility.Candidate {
			return []eligibility.Candidate{
				{ProfileID: "p1", Stats: &authstore.ProfileUsageStats{CooldownUntil: cooldownUntil}},
			}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("result = %q, want ok", result)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("expected driver to have waited for the cooldown, elapsed = %v", elapsed)
	}
}

// Cancellation firing mid-sleep should raise a cancellation error without
// invoking execute again.
func TestRun_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", &FailoverError{Reason: authstore.ReasonRateLimit, Provider: "anthropic"}
	}, RunOptions{})

	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one execute call before the wait, got %d", calls)
	}
}

func TestRun_NonRetryableFailoverErrorPropagatesImmediately(t *testing.T) {
	calls := 0
	_, err := Run(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", &FailoverError{Reason: authstore.ReasonBilling, Provider: "anthropic"}
	}, RunOptions{})

	var fe *FailoverError
	if !errors.As(err, &fe) || fe.Reason != authstore.ReasonBilling {
		t.Fatalf("expected billing FailoverError to propagate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retry, calls = %d", calls)
	}
}

func TestRun_PlainErrorPropagatesImmediately(t *testing.T) {
	sentinel := errors.New("boom")
	_, err := Run(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		return "", sentinel
	}, RunOptions{})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestRun_AlreadyCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Run(ctx, func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "ok", nil
	}, RunOptions{})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if calls != 0 {
		t.Fatalf("expected execute never invoked, calls = %d", calls)
	}
}
