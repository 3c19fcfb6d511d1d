package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct{ visible bool }

func (i item) IsVisible() bool { return i.visible }

func items(n int) []item {
	out := make([]item, n)
	for i := range out {
		out[i] = item{visible: true}
	}
	return out
}

func sequence(sizes ...int) (func(context.Context) ([]item, error), *int) {
	calls := 0
	return func(context.Context) ([]item, error) {
		n := sizes[len(sizes)-1]
		if calls < len(sizes) {
			n = sizes[calls]
		}
		calls++
		return items(n), nil
	}, &calls
}

func fast(timeout time.Duration) Options {
	return Options{Interval: time.Millisecond, Timeout: timeout, MinStableRounds: 2}
}

func TestWaitForStableGrowingThenConstant(t *testing.T) {
	fetch, calls := sequence(0, 0, 3, 3, 3)

	got, err := WaitForStable(context.Background(), fetch, fast(2*time.Second))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 5, *calls)
}

func TestWaitForStableAlwaysEmpty(t *testing.T) {
	fetch, calls := sequence(0)

	_, err := WaitForStable(context.Background(), fetch, Options{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond, MinStableRounds: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStabilityTimeout)
	assert.Greater(t, *calls, 1)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.LastSize)
}

func TestWaitForStableVisibilityChangeResetsStreak(t *testing.T) {
	calls := 0
	fetch := func(context.Context) ([]item, error) {
		calls++
		switch calls {
		case 1, 2:
			return []item{{false}, {false}}, nil
		case 3:
			return []item{{true}, {false}}, nil
		default:
			return []item{{true}, {true}}, nil
		}
	}

	got, err := WaitForStable(context.Background(), fetch, fast(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, countVisible(got))
	assert.Equal(t, 6, calls)
}

func TestWaitForStableFetchErrorIsUnstable(t *testing.T) {
	calls := 0
	fetch := func(context.Context) ([]item, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("detached")
		}
		return items(2), nil
	}

	_, err := WaitForStable(context.Background(), fetch, fast(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestWaitForStableCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetch, _ := sequence(3)

	_, err := WaitForStable(ctx, fetch, fast(time.Second))
	assert.ErrorIs(t, err, ErrStabilityTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForStableCallerDeadlineWins(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	fetch, _ := sequence(0)

	start := time.Now()
	_, err := WaitForStable(ctx, fetch, fast(time.Minute))
	assert.ErrorIs(t, err, ErrStabilityTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestUntil(t *testing.T) {
	calls := 0
	err := Until(context.Background(), "overlay closed", fast(time.Second), func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilTimeoutCarriesLastError(t *testing.T) {
	boom := errors.New("no such element")
	err := Until(context.Background(), "grid visible", fast(20*time.Millisecond), func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, ErrStabilityTimeout)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "grid visible")
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()
	assert.Equal(t, DefaultInterval, o.Interval)
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultMinStableRounds, o.MinStableRounds)

	o = Options{Interval: time.Second, Timeout: 3 * time.Second, MinStableRounds: 4}.WithDefaults()
	assert.Equal(t, 4, o.MinStableRounds)
	assert.Equal(t, 10*time.Second, o.WithTimeout(10*time.Second).Timeout)
}
