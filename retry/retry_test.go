package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	var delays []time.Duration
	cfg := fast()
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("navigation failed")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDoExhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), fast(), func(context.Context) error {
		calls++
		return boom
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.ErrorIs(t, err, boom)
}

func TestDoNotRetryable(t *testing.T) {
	fatal := errors.New("bad credentials")
	cfg := fast()
	cfg.IsRetryable = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return fatal
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, fatal, err)
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	calls := 0
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		cancel()
		return errors.New("flaky")
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.Delay(1))
	assert.Equal(t, 2*time.Second, cfg.Delay(2))
	assert.Equal(t, 3*time.Second, cfg.Delay(3))
	assert.Equal(t, 3*time.Second, cfg.Delay(10))
}

func TestDefaultIsRetryable(t *testing.T) {
	assert.True(t, DefaultIsRetryable(errors.New("x")))
	assert.False(t, DefaultIsRetryable(nil))
	assert.False(t, DefaultIsRetryable(context.Canceled))
	assert.False(t, DefaultIsRetryable(context.DeadlineExceeded))
}
