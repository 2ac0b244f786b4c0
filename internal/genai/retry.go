package genai

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// CalculateBackoff returns the delay before retry number attempt using Full
// Jitter:
//
//	delay = random(0, min(maxDelay, initialDelay * 2^(attempt-1)))
//
// Reference: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func CalculateBackoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	exp := math.Pow(2, float64(attempt-1))
	delay := min(time.Duration(float64(initial)*exp), maxDelay)
	if delay <= 0 {
		return 0
	}

	jitter, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		return delay / 2
	}
	return time.Duration(jitter.Int64())
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithRetry runs fn up to cfg.MaxAttempts times, retrying only errors that
// ClassifyError marks as transient. onRetry, when set, runs before each
// retry. The last error is returned when every attempt fails.
func WithRetry(ctx context.Context, cfg RetryConfig, onRetry func(attempt int, err error), fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var lastErr error

	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts-1 {
			break
		}

		delay := CalculateBackoff(attempt+1, cfg.InitialDelay, cfg.MaxDelay)
		if !HasSufficientBudget(ctx, delay) {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// HasSufficientBudget reports whether ctx leaves at least required time.
func HasSufficientBudget(ctx context.Context, required time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= required
}
