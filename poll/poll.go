// Package poll waits for volatile UI state to settle.
//
// Every wait in the suite goes through WaitForStable or Until: a ticker-driven loop
// bounded by Options.Timeout and by the caller's context. Both fail with an error
// matching ErrStabilityTimeout instead of blocking past their budget.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStabilityTimeout is matched by every poll failure.
var ErrStabilityTimeout = errors.New("stability timeout")

const (
	DefaultInterval        = 250 * time.Millisecond
	DefaultTimeout         = 5 * time.Second
	DefaultMinStableRounds = 2
)

// Options bounds one wait.
type Options struct {
	Interval        time.Duration `yaml:"interval"`
	Timeout         time.Duration `yaml:"timeout"`
	MinStableRounds int           `yaml:"min_stable_rounds"`
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MinStableRounds <= 0 {
		o.MinStableRounds = DefaultMinStableRounds
	}
	return o
}

// WithTimeout returns a copy with a different overall budget.
func (o Options) WithTimeout(d time.Duration) Options {
	o.Timeout = d
	return o
}

// TimeoutError describes a wait that ran out of budget.
type TimeoutError struct {
	What     string
	Rounds   int
	Elapsed  time.Duration
	LastSize int
	Err      error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: %s not reached after %d rounds in %s", ErrStabilityTimeout, e.What, e.Rounds, e.Elapsed.Round(time.Millisecond))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrStabilityTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// Observation is anything a candidate poll returns.
type Observation interface {
	IsVisible() bool
}

// WaitForStable calls fetch every Interval until MinStableRounds consecutive rounds
// are stable. A round is stable when it returned a non-empty set whose size and
// visible count equal the previous round's. A fetch error makes the round unstable.
func WaitForStable[T Observation](ctx context.Context, fetch func(context.Context) ([]T, error), opts Options) ([]T, error) {
	opts = opts.WithDefaults()

	var (
		last                  []T
		lastErr               error
		havePrev              bool
		prevSize, prevVisible int
		streak                int
	)
	start := time.Now()
	rounds, err := loop(ctx, opts, func(ctx context.Context) bool {
		items, err := fetch(ctx)
		if err != nil {
			lastErr = err
			havePrev, streak = false, 0
			return false
		}
		size, visible := len(items), countVisible(items)
		if size > 0 && havePrev && size == prevSize && visible == prevVisible {
			streak++
		} else {
			streak = 0
		}
		last = items
		havePrev, prevSize, prevVisible = true, size, visible
		return streak >= opts.MinStableRounds
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, &TimeoutError{What: "stable candidate set", Rounds: rounds, Elapsed: time.Since(start), LastSize: len(last), Err: lastErr}
	}
	return last, nil
}

// Until calls cond every Interval until it reports true.
func Until(ctx context.Context, what string, opts Options, cond func(context.Context) (bool, error)) error {
	opts = opts.WithDefaults()

	var lastErr error
	start := time.Now()
	rounds, err := loop(ctx, opts, func(ctx context.Context) bool {
		ok, err := cond(ctx)
		if err != nil {
			lastErr = err
			return false
		}
		return ok
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return &TimeoutError{What: what, Rounds: rounds, Elapsed: time.Since(start), Err: lastErr}
	}
	return nil
}

// loop runs step immediately and then on every tick until it returns true or the
// budget is spent. It returns the number of rounds run.
func loop(ctx context.Context, opts Options, step func(context.Context) bool) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			return rounds, err
		}
		rounds++
		if step(ctx) {
			return rounds, nil
		}
		select {
		case <-ctx.Done():
			return rounds, ctx.Err()
		case <-ticker.C:
		}
	}
}

func countVisible[T Observation](items []T) int {
	n := 0
	for _, it := range items {
		if it.IsVisible() {
			n++
		}
	}
	return n
}
