package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		failures     int
		name         string
		wantAttempts int
		wantErr      bool
	}{
		{name: "succeeds first try", failures: 0, wantAttempts: 1},
		{name: "succeeds after retries", failures: 2, wantAttempts: 3},
		{name: "exhausts attempts", failures: 5, wantAttempts: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := WithRetry(context.Background(), func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return errors.New("boom")
				}
				return nil
			}, fastPolicy(3))

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMaxRetries)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		attempts++
		return &RetryableError{Err: errors.New("bad request"), Retryable: false}
	}, fastPolicy(5))

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, IsRetryable(err))
}

func TestWithRetry_AttemptTimeout(t *testing.T) {
	policy := fastPolicy(2)
	policy.AttemptTimeout = 5 * time.Millisecond

	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		<-ctx.Done()
		return ctx.Err()
	}, policy)

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func(context.Context) error {
		return errors.New("boom")
	}, fastPolicy(3))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(10))
}

func TestRetryPolicy_Normalize(t *testing.T) {
	p := RetryPolicy{}.Normalize()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialDelay)
	assert.InDelta(t, 2.0, p.Multiplier, 0)
}
