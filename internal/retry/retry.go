// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStop wraps an error that must not be retried. Do returns the wrapped
// error immediately.
type ErrStop struct{ Err error }

func (e *ErrStop) Error() string { return e.Err.Error() }
func (e *ErrStop) Unwrap() error { return e.Err }

// Stop marks err as final.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &ErrStop{Err: err}
}

// Do calls fn up to attempts times, sleeping delay between failed calls.
// attempt counts from 1. It returns nil on the first success, the
// unwrapped error of a Stop, ctx.Err() if ctx ends during a delay, or the
// last error once the budget is spent.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(attempt)
		if last == nil {
			return nil
		}
		var stop *ErrStop
		if errors.As(last, &stop) {
			return stop.Err
		}

		if attempt == attempts {
			break
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, last)
}

// Sleep waits for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
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
