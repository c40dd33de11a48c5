package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retries of collaborator I/O such as frame reads.
// Only errors that IsRetryable accepts are retried.
type RetryConfig struct {
	// MaxAttempts counts the first attempt; values below 1 mean 1.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// Jitter spreads each backoff by up to ±Jitter of its length.
	Jitter float64
}

// DefaultRetry suits local file and device reads: a few quick attempts.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{MaxAttempts: 1}

// RetryResult is the outcome of WithRetryContext.
type RetryResult[T any] struct {
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// WithRetryContext calls fn until it succeeds, returns an error that is not
// retryable, runs out of attempts, or ctx is done. A failure is returned as
// a *CategorizedError wrapping the last error; cancellation is categorized
// CategoryCancelled.
func WithRetryContext[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) RetryResult[T] {
	start := time.Now()
	attempts := max(cfg.MaxAttempts, 1)
	backoff := cfg.InitialBackoff

	fail := func(err error, cat Category, n int, why string) RetryResult[T] {
		return RetryResult[T]{
			Err:      &CategorizedError{Err: err, Category: cat, Retries: n, Context: why},
			Attempts: n,
			Duration: time.Since(start),
		}
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if err := ctx.Err(); err != nil {
			return fail(err, CategoryCancelled, n-1, "context cancelled")
		}
		v, err := fn(ctx)
		if err == nil {
			return RetryResult[T]{Value: v, Attempts: n, Duration: time.Since(start)}
		}
		lastErr = err
		if !IsRetryable(err) {
			return fail(err, Categorize(err), n, "")
		}
		if n == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fail(ctx.Err(), CategoryCancelled, n, "context cancelled during backoff")
		case <-time.After(jittered(backoff, cfg.Jitter)):
		}
		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return fail(lastErr, Categorize(lastErr), attempts, "max retries exceeded")
}

func jittered(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	return time.Duration(float64(base) * (1 + jitter*(rand.Float64()*2-1)))
}
