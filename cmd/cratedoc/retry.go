package main

import (
	"context"
	"time"

	"github.com/fwojciec/cratedoc"
)

// LogFunc is the signature for a logging function.
type LogFunc func(format string, args ...any)

// RetryDelays returns n exponential backoff delays starting at 1s.
func RetryDelays(n int) []time.Duration {
	delays := make([]time.Duration, 0, max(n, 0))
	for i := range max(n, 0) {
		delays = append(delays, time.Second<<i)
	}
	return delays
}

// DefaultRetryDelays returns the backoff delays for retries: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return RetryDelays(3)
}

// Retry calls fn until it succeeds, fails with an error that is not
// retryable, or every delay is spent. The logger, if provided, is called
// for each retry attempt.
func Retry[T any](ctx context.Context, what string, fn func(context.Context) (T, error), logger LogFunc, delays []time.Duration) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= len(delays) || !cratedoc.IsRetryable(err) {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		if logger != nil {
			logger("retry %s (attempt %d): %s", what, attempt+2, cratedoc.ErrorMessage(err))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}
}
