package shared

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrStorageUnavailable marks transient storage failures that the caller
// boundary may retry. Ledger and repository primitives never retry on
// their own.
var ErrStorageUnavailable = errors.New("storage unavailable")

// RetryPolicy bounds retry attempts with exponential backoff and jitter.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy mirrors the integration defaults: three attempts,
// one second base delay, capped at a minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. Only errors wrapping ErrStorageUnavailable
// are retried.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil || !errors.Is(lastErr, ErrStorageUnavailable) {
			return lastErr
		}
		if attempt == policy.Attempts-1 {
			break
		}
		delay := policy.BaseDelay << uint(attempt)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
		// +/- 25% jitter so retries from concurrent deliveries spread out.
		delay = time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
