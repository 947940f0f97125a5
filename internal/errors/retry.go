package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	maxRetries        = 3
	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 5 * time.Second
	backoffMultiplier = 2.0
)

// WithRetry runs fn with bounded exponential backoff. Only errors marked
// Retryable are retried; it is meant for idempotent reads such as quote,
// balance and allowance queries. Transaction submission must never go
// through here: resubmitting a signed transaction risks double spends.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) || attempt == maxRetries {
			return err
		}

		backoff := backoffDuration(attempt + 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return err
}

// IsRetryable reports whether err is an AppError flagged for retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

func backoffDuration(attempt int) time.Duration {
	delay := float64(initialBackoff) * math.Pow(backoffMultiplier, float64(attempt))
	if backoff := time.Duration(delay); backoff < maxBackoff {
		return backoff
	}

	return maxBackoff
}
