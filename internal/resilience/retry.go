package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is returned by [Retry] when every attempt failed.
var ErrAttemptsExhausted = errors.New("resilience: attempts exhausted")

// RetryConfig configures [Retry].
type RetryConfig struct {
	// MaxAttempts is the total number of attempts. Default: 1.
	MaxAttempts int

	// Backoff is the constant delay between attempts. Zero retries
	// immediately.
	Backoff time.Duration

	// Cleanup runs after every failed attempt, before the next one starts
	// and before Retry returns. Use it to discard partial artifacts.
	Cleanup func()

	// OnFailure, when set, is told about each failed attempt (1-based).
	OnFailure func(attempt int, err error)
}

// Retry calls fn until it succeeds, ctx is done, or MaxAttempts is reached.
// fn receives the 1-based attempt number. The returned error wraps both
// [ErrAttemptsExhausted] and the last failure; cancellation returns the
// context error wrapped with the last failure, if any.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return joinCause(err, lastErr)
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if cfg.Cleanup != nil {
			cfg.Cleanup()
		}
		if cfg.OnFailure != nil {
			cfg.OnFailure(attempt, err)
		}

		if attempt < attempts && cfg.Backoff > 0 {
			t := time.NewTimer(cfg.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return joinCause(ctx.Err(), lastErr)
			case <-t.C:
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

func joinCause(ctxErr, cause error) error {
	if cause == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last failure: %w)", ctxErr, cause)
}
