package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverabilityByClass(t *testing.T) {
	assert.True(t, IsRecoverable(NewValidationError("bad amount")))
	assert.True(t, IsRecoverable(NewInsufficientFundsError("not enough ETH")))
	assert.False(t, IsRecoverable(NewSessionExpiredError("amount_in")))
	assert.False(t, IsRecoverable(NewExternalServiceError("quote", assert.AnError)))
	assert.False(t, IsRecoverable(NewApprovalFailedError(assert.AnError)))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestRecoverabilitySurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("confirm step: %w", NewInsufficientFundsError("not enough"))
	assert.True(t, IsRecoverable(wrapped))

	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, "E110", appErr.Code)
}

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return NewValidationError("bad input")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return NewExternalServiceError("rpc", assert.AnError)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return NewExternalServiceError("rpc", assert.AnError)
	})

	require.Error(t, err)
	assert.Equal(t, maxRetries+1, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return NewExternalServiceError("rpc", assert.AnError)
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreakerOpensOnErrorRate(t *testing.T) {
	cb := NewCircuitBreaker()

	for i := 0; i < breakerMinRequests; i++ {
		_ = cb.Call(func() error { return assert.AnError })
	}

	assert.Equal(t, BreakerOpen, cb.State())

	calls := 0
	err := cb.Call(func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreakerStaysClosedUnderSuccess(t *testing.T) {
	cb := NewCircuitBreaker()

	for i := 0; i < breakerMinRequests*2; i++ {
		require.NoError(t, cb.Call(func() error { return nil }))
	}

	assert.Equal(t, BreakerClosed, cb.State())
}
