package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	b := NewBreaker(3, time.Minute)
	b.now = func() time.Time { return clock }

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.Record(boom)
		assert.Equal(t, StateClosed, b.State(), "breaker must stay closed below threshold")
	}

	require.NoError(t, b.Allow())
	b.Record(boom)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 3, b.Failures())

	// Rejected without invoking the operation while cooling down.
	err := b.Allow()
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return clock }

	boom := errors.New("boom")
	b.Record(boom)
	b.Record(boom)
	require.Equal(t, StateOpen, b.State())

	clock = clock.Add(61 * time.Second)
	require.NoError(t, b.Allow(), "recovery elapsed, probe admitted")
	require.Equal(t, StateHalfOpen, b.State())

	b.Record(nil)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return clock }

	boom := errors.New("boom")
	b.Record(boom)
	b.Record(boom)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	b.Record(boom)
	assert.Equal(t, StateOpen, b.State())

	// The cooldown restarts from the half-open failure.
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestRateLimiterTrailingWindow(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(3, time.Minute)
	l.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Acquire(), "call %d within budget", i+1)
	}
	assert.False(t, l.Acquire(), "fourth call within the window must be rejected")

	clock = clock.Add(61 * time.Second)
	assert.True(t, l.Acquire(), "call after the window elapsed must succeed")
}

func TestRateLimiterRejectionDoesNotConsumeBudget(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, time.Minute)
	l.now = func() time.Time { return clock }

	require.True(t, l.Acquire())
	for i := 0; i < 5; i++ {
		require.False(t, l.Acquire())
	}

	clock = clock.Add(2 * time.Minute)
	assert.True(t, l.Acquire(), "rejections must not extend the window")
}

func TestRetryPolicyWait(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, MinWait: time.Second, MaxWait: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), p.Wait(1))
	assert.Equal(t, time.Second, p.Wait(2))
	assert.Equal(t, 2*time.Second, p.Wait(3))
	assert.Equal(t, 4*time.Second, p.Wait(4))
	assert.Equal(t, 8*time.Second, p.Wait(5))
	assert.Equal(t, 10*time.Second, p.Wait(6), "wait is capped at MaxWait")
}
