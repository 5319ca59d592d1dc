package resilience

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy re-invokes an operation up to MaxAttempts times with
// exponential backoff. Any error is eligible for retry; exhausting the
// attempts surfaces the last failure.
type RetryPolicy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy matches the backend-call defaults: three attempts,
// 1s minimum wait doubling up to 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, MinWait: time.Second, MaxWait: time.Minute, Multiplier: 2}
}

// Wait returns the backoff before the given attempt (1-based). The first
// attempt has no wait; attempt i waits min(MaxWait, MinWait*Multiplier^(i-2)).
func (p RetryPolicy) Wait(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	wait := float64(p.MinWait) * math.Pow(p.Multiplier, float64(attempt-2))
	if wait > float64(p.MaxWait) {
		return p.MaxWait
	}
	return time.Duration(wait)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withTimeout races op against a timer. On expiry the derived context is
// cancelled so the pending operation can stop, and ErrTimeout is returned.
// The cancellation never cascades past the derived context to sibling calls.
func withTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op(tctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, tctx.Err()
	}
}
