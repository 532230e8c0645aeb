// Package resilience provides bounded retry for calls to external services.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with a linearly increasing delay.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// BaseDelay is the backoff unit. The wait after failed attempt k is
	// BaseDelay*k. Default: 10s.
	BaseDelay time.Duration

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry wait with the failed attempt
	// number, the wait about to happen, and the error.
	OnRetry func(attempt int, wait time.Duration, err error)

	// Sleep waits for d or until ctx is done. If nil, a timer is used.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the retry budget used for knowledge-source lookups.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Second,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("resilience: gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err came from a retry budget running out.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// Do executes fn with retry logic according to cfg. It retries only on
// errors deemed transient (via ShouldRetry or the default IsTransient check).
// Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Same semantics as Do
// but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, err
		}

		// Non-transient errors are returned as is.
		if !cfg.ShouldRetry(err) {
			return zero, err
		}

		if attempt >= cfg.MaxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait := Backoff(cfg.BaseDelay, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}
		if serr := cfg.Sleep(ctx, wait); serr != nil {
			return zero, err
		}
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	return cfg
}

// Sleep blocks for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service string, maxAttempts int) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("network error, retrying",
			zap.String("service", service),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
