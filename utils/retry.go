package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	// MaxAttempts counts the first try. Values below 1 are treated as 1.
	MaxAttempts int
	BaseDelay   time.Duration
	// Multiplier scales the delay after each failed attempt; 0 or 1 keeps it fixed.
	Multiplier float64
	Logger     *Logger
}

// Do runs fn until it succeeds, MaxAttempts is reached or ctx is done, and
// returns the number of attempts made together with the final error.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, fmt.Errorf("%s aborted after %d attempts: %w", operationName, attempt, lastErr)
		}
		if attempt == maxAttempts {
			break
		}

		if r.Logger != nil {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, maxAttempts, lastErr, delay)
		}
		if err := Sleep(ctx, delay); err != nil {
			return attempt, fmt.Errorf("%s aborted after %d attempts: %w", operationName, attempt, lastErr)
		}
		if r.Multiplier > 1 {
			delay = time.Duration(float64(delay) * r.Multiplier)
		}
	}

	return maxAttempts, fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
