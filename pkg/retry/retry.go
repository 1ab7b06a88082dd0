// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, fraction of the delay randomized in either direction
}

// DefaultConfig returns 3 retries starting at 100ms, doubling up to 5s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// applyJitter returns delay +/- (delay * jitterFactor * random(-1 to +1)).
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn until it succeeds or retries are exhausted.
// Returns the last error, or ctx.Err() if the context ends while waiting.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	return DoWhen(ctx, cfg, func(error) bool { return true }, fn)
}

// DoIfRetryable retries only errors that IsRetryable reports as transient.
// Permanent errors (auth, validation, bad requests) are returned immediately.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	return DoWhen(ctx, cfg, IsRetryable, fn)
}

// DoWhen retries fn while shouldRetry accepts the returned error.
func DoWhen(ctx context.Context, cfg *Config, shouldRetry func(error) bool, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, shouldRetry, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn and returns both result and error.
// The last result is returned even when every attempt failed.
func DoWithResult[T any](ctx context.Context, cfg *Config, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if shouldRetry != nil && !shouldRetry(err) {
			return result, err
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(applyJitter(delay, cfg.JitterFactor)):
				delay = time.Duration(float64(delay) * cfg.Multiplier)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	return result, lastErr
}

// RetryableError is implemented by errors that declare their own retryability,
// such as classified LLM errors.
type RetryableError interface {
	error
	IsRetryable() bool
}

// IsRetryable determines if an error is transient and worth retrying.
// Errors implementing RetryableError anywhere in the chain decide for themselves;
// otherwise known transient network and database failures are matched by message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"serialization failure",
	"network is unreachable",
	"rate limit",
	"too many requests",
	"service unavailable",
}
