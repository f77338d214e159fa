package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const maxRetries = 3

// retryableError marks a transient remote failure worth retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// withRetry runs fn up to maxRetries times, backing off between attempts.
// Non-retryable errors are returned immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := range maxRetries {
		lastErr = fn()
		var retryErr *retryableError
		if lastErr == nil || !errors.As(lastErr, &retryErr) {
			return lastErr
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// backoff returns a duration for attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if base > 5*time.Second {
		base = 5 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
