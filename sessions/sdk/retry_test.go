// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package sdk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.InitialInterval)
	assert.Equal(t, 10*time.Second, config.MaxInterval)
	assert.Equal(t, 2.0, config.Multiplier)
}

func TestDefaultRetryCondition(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), true},
		{"connection reset", fmt.Errorf("connection reset by peer"), true},
		{"mongo no servers", fmt.Errorf("server selection error: no reachable servers"), true},
		{"cassandra no hosts", fmt.Errorf("gocql: no hosts available in the pool"), true},
		{"random error", fmt.Errorf("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultRetryCondition(tt.err))
		})
	}
}

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
		RetryIf:         func(error) bool { return true },
	}
}

func TestRetryWithBackoff_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	result, err := RetryWithBackoff(context.Background(), fastRetry(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("still down")
	})
	require.Error(t, err)

	var retryErr *RetryError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, 4, retryErr.Attempts)
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "still down")
}

func TestRetryWithBackoff_NonRetryable(t *testing.T) {
	attempts := 0
	cause := errors.New("bad credentials")
	_, err := RetryWithBackoff(context.Background(), fastRetry(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, &NonRetryableError{Err: cause}
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsNonRetryable(err))
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_RetryIfFalse(t *testing.T) {
	cfg := fastRetry()
	cfg.RetryIf = DefaultRetryCondition
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("permission denied")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RetryWithBackoff(ctx, nil, func(ctx context.Context) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, BackoffDelay(time.Second, time.Minute, 2, 0))
	assert.Equal(t, 2*time.Second, BackoffDelay(time.Second, time.Minute, 2, 1))
	assert.Equal(t, 8*time.Second, BackoffDelay(time.Second, time.Minute, 2, 3))
	assert.Equal(t, time.Minute, BackoffDelay(time.Second, time.Minute, 2, 20))
	assert.Equal(t, 4*time.Second, BackoffDelay(time.Second, time.Minute, 0, 2))
	assert.Equal(t, time.Second, BackoffDelay(time.Second, time.Minute, 2, -3))
}
