package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelaysDoubleFromBase(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   8 * time.Millisecond,
	}

	var delays []time.Duration
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		delays = append(delays, delay)
	}

	attempts := 0
	err := policy.Run(context.Background(), func() error {
		attempts++
		return errors.New("connect refused")
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts, "one initial attempt plus three retries")
	require.Len(t, delays, 3)
	assert.Equal(t, 1*time.Millisecond, delays[0])
	assert.Equal(t, 2*time.Millisecond, delays[1])
	assert.Equal(t, 4*time.Millisecond, delays[2])
}

func TestRetryCapsAtMaxDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
	}

	var delays []time.Duration
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		delays = append(delays, delay)
	}

	err := policy.Run(context.Background(), func() error {
		return errors.New("still down")
	})

	require.Error(t, err)
	require.Len(t, delays, 5)
	for _, d := range delays {
		assert.LessOrEqual(t, d, 4*time.Millisecond)
	}
	assert.Equal(t, 4*time.Millisecond, delays[len(delays)-1])
}

func TestRetryStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 8 * time.Millisecond}

	attempts := 0
	err := policy.Run(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 8 * time.Millisecond}

	wrapped := &httpStatusError{StatusCode: 404, Status: "404 Not Found"}
	attempts := 0
	err := policy.Run(context.Background(), func() error {
		attempts++
		return Permanent(wrapped)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var statusErr *httpStatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestRetryAbortsOnContextCancel(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Run(ctx, func() error {
		attempts++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}

func TestDefaultRetryPolicyLadder(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 8*time.Second, p.MaxDelay)
}
