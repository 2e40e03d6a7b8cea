package retry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Default policy values.
const (
	DefaultAttempts    = 3
	DefaultFlatDelay   = 500 * time.Millisecond
	DefaultBackoffBase = time.Second
)

// Backoff selects how the wait between attempts is computed.
type Backoff int

const (
	// Flat waits the same delay after every failure.
	Flat Backoff = iota
	// Linear waits delay*n after the n-th failure.
	Linear
)

// String returns the name of the backoff.
func (b Backoff) String() string {
	switch b {
	case Flat:
		return "flat"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// Policy describes a bounded retry schedule.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Backoff  Backoff

	// Retryable reports whether a failure is worth another attempt. Nil
	// retries every failure.
	Retryable func(error) bool
}

// FlatDelay returns a policy that retries up to attempts times, waiting delay
// between each attempt.
func FlatDelay(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay, Backoff: Flat}
}

// LinearBackoff returns a policy that retries up to attempts times, waiting
// base*n after the n-th failure.
func LinearBackoff(attempts int, base time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: base, Backoff: Linear}
}

// Wait returns the delay to apply after the n-th failed attempt (1-based).
func (p Policy) Wait(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if p.Backoff == Linear {
		return p.Delay * time.Duration(n)
	}
	return p.Delay
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

// Do invokes op until it succeeds or the policy is exhausted. The error of the
// last attempt is returned as is, so callers can still match it with
// errors.As. A cancelled context stops the schedule and returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	limit := p.attempts()
	for attempt := 1; attempt <= limit; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == limit {
			break
		}
		if p.Retryable != nil && !p.Retryable(err) {
			log.Debug("not retrying operation", "attempt", attempt, "error", err)
			break
		}

		wait := p.Wait(attempt)
		log.Debug("retrying operation", "attempt", attempt, "of", limit, "wait", wait, "backoff", p.Backoff, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}

	return zero, lastErr
}

// Run is Do for operations that only report an error.
func Run(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
