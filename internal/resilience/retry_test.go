package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("flaky"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := eris.New("not found")
	err := Do(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		return NewTransientError(eris.New("still down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastRetryConfig(5), func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(eris.New("down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	cfg := fastRetryConfig(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(eris.New("down"), 502)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("bad input")))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 429)))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(eris.New("x"), 500), "outer")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
