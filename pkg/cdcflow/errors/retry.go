package errors

import (
	"context"
	"math"
	"time"
)

// RetryConfig configures retry behavior.
//
// The schedule is explicit: after failed attempt n (1-based) the runner
// sleeps BaseDelay*2^(n-1), and the total number of attempts is
// MaxRetries+1. The final failure is returned, never slept on.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the sleep after the first failed attempt.
	BaseDelay time.Duration

	// MaxDelay caps a single sleep. Zero means uncapped.
	MaxDelay time.Duration

	// RetryableFunc optionally overrides the default retryability check.
	RetryableFunc func(error) bool
}

// DefaultRetry is the standard retry configuration.
var DefaultRetry = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  100 * time.Millisecond,
	MaxDelay:   30 * time.Second,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{}

// Attempts returns the total number of attempts, MaxRetries+1.
func (c RetryConfig) Attempts() int {
	if c.MaxRetries < 0 {
		return 1
	}
	return c.MaxRetries + 1
}

// Delay returns the sleep that follows failed attempt n (1-based).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 || c.BaseDelay <= 0 {
		return 0
	}
	shift := attempt - 1
	d := c.BaseDelay
	if shift >= 62 || d > time.Duration(math.MaxInt64>>shift) {
		d = time.Duration(math.MaxInt64)
	} else {
		d <<= shift
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Schedule lists every sleep the runner would perform, in order.
func (c RetryConfig) Schedule() []time.Duration {
	out := make([]time.Duration, 0, c.Attempts()-1)
	for attempt := 1; attempt < c.Attempts(); attempt++ {
		out = append(out, c.Delay(attempt))
	}
	return out
}

// RetryResult contains the result of a retry operation.
type RetryResult[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the final error if all attempts failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent, sleeps included.
	Duration time.Duration
}

// WithRetryContext executes fn until it succeeds, fails with a
// non-retryable error, runs out of attempts, or ctx is done.
//
// fn receives a context carrying the current attempt number; see AttemptFrom.
func WithRetryContext[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(context.Context) (T, error),
) RetryResult[T] {
	start := time.Now()
	total := cfg.Attempts()
	var lastErr error

	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	for attempt := 1; attempt <= total; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryResult[T]{
				Err:      &CategorizedError{Err: err, Category: CategoryCancelled, Attempts: attempt - 1, Context: "context cancelled"},
				Attempts: attempt - 1,
				Duration: time.Since(start),
			}
		}

		result, err := fn(WithAttempt(ctx, attempt))
		if err == nil {
			return RetryResult[T]{
				Value:    result,
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		lastErr = err

		if IsCancelled(err) || !isRetryable(err) {
			return RetryResult[T]{
				Err: &CategorizedError{
					Err:      err,
					Category: Categorize(err),
					Attempts: attempt,
				},
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		// Don't sleep after the last attempt
		if attempt < total {
			if !sleep(ctx, cfg.Delay(attempt)) {
				return RetryResult[T]{
					Err:      &CategorizedError{Err: ctx.Err(), Category: CategoryCancelled, Attempts: attempt, Context: "context cancelled during backoff"},
					Attempts: attempt,
					Duration: time.Since(start),
				}
			}
		}
	}

	return RetryResult[T]{
		Err: &CategorizedError{
			Err:      lastErr,
			Category: Categorize(lastErr),
			Attempts: total,
			Context:  "max retries exceeded",
		},
		Attempts: total,
		Duration: time.Since(start),
	}
}

// Do is WithRetryContext for functions without a result value.
func Do(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) RetryResult[struct{}] {
	return WithRetryContext(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// sleep waits for d or until ctx is done. Reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type attemptKey struct{}

// WithAttempt returns a context carrying the 1-based attempt number.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// AttemptFrom returns the attempt number stored by WithAttempt, or 0.
func AttemptFrom(ctx context.Context) int {
	if v, ok := ctx.Value(attemptKey{}).(int); ok {
		return v
	}
	return 0
}

// RetryOption configures retry behavior.
type RetryOption func(*RetryConfig)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.MaxRetries = n
	}
}

// WithBaseDelay sets the first backoff.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.BaseDelay = d
	}
}

// WithMaxDelay caps a single backoff.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.MaxDelay = d
	}
}

// WithRetryableFunc sets a custom retryability check.
func WithRetryableFunc(fn func(error) bool) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.RetryableFunc = fn
	}
}

// NewRetryConfig creates a retry configuration with the given options.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
