// Package probe implements the health predicates that gate a service's
// transition to ready, and the retry loop that drives them.
package probe

import (
	"context"
	"fmt"
	"time"
)

// Checker performs a single readiness probe.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// SleepFunc waits for d or until ctx is cancelled. Tests inject a fake so
// polling runs without wall-clock delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options configures Poll.
type Options struct {
	// Interval is the spacing between attempts.
	Interval time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// Retries is the total number of attempts.
	Retries int

	// Sleep overrides the inter-attempt wait. Nil means real time.
	Sleep SleepFunc

	// OnFailure, if non-nil, is called after each failed attempt.
	OnFailure func(attempt int, err error)
}

// ExhaustedError is returned by Poll when every attempt failed.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("health check failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Poll invokes checker up to opts.Retries times, spaced by opts.Interval,
// with each attempt bounded by opts.Timeout. The first success returns nil.
// Exhausting the budget returns an *ExhaustedError; a cancelled context
// returns ctx.Err() without further attempts.
func Poll(ctx context.Context, checker Checker, opts Options) error {
	slp := opts.Sleep
	if slp == nil {
		slp = sleep
	}
	retries := opts.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		err := checker.Check(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if opts.OnFailure != nil {
			opts.OnFailure(attempt, err)
		}

		if attempt < retries {
			if err := slp(ctx, opts.Interval); err != nil {
				return err
			}
		}
	}

	return &ExhaustedError{Attempts: retries, LastErr: lastErr}
}
