// Package retry implements the bounded fixed-interval probing discipline used
// against the host: a handful of attempts spaced evenly, then give up and let
// the caller degrade to sentinel values.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Policy controls how often and how long an operation is retried.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Operation is a single attempt returning a value or an error. Any error is
// treated as transient; permanent failures should be surfaced by the caller
// after Do returns.
type Operation[T any] func() (T, error)

// Do runs op up to p.MaxAttempts times, sleeping p.Interval between attempts
// on the given clock. It returns the first successful value, or the last
// error once attempts are exhausted or ctx is cancelled.
func Do[T any](ctx context.Context, clock clockwork.Clock, p Policy, op Operation[T]) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, fmt.Errorf("retry: MaxAttempts must be >= 1, got %d", p.MaxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-clock.After(p.Interval):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
