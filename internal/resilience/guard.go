package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kubestack/kube-debugger/internal/metrics"
)

// GuardConfig sizes the wrappers protecting one backend.
type GuardConfig struct {
	// Name identifies the protected operation in logs, metrics and the
	// error aggregator.
	Name string
	// Service is the health-tracker entry fed by call outcomes; defaults
	// to Name.
	Service string

	FailureThreshold int
	RecoveryTimeout  time.Duration

	MaxRequests int
	RateWindow  time.Duration

	Retry RetryPolicy

	Timeout time.Duration
}

// DefaultGuardConfig mirrors the backend-call defaults: breaker opens after
// 5 consecutive failures with a 60s cooldown, 100 requests per minute,
// 3 attempts with exponential backoff, 30s per-attempt timeout.
func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		Name:             name,
		Service:          name,
		FailureThreshold: 5,
		RecoveryTimeout:  time.Minute,
		MaxRequests:      100,
		RateWindow:       time.Minute,
		Retry:            DefaultRetryPolicy(),
		Timeout:          30 * time.Second,
	}
}

// Guard composes the resilience wrappers around one backend's calls. The
// rate limiter gates entry to the whole stack; inside, each retry attempt
// gets its own timeout and circuit-breaker evaluation.
type Guard struct {
	name    string
	service string
	limiter *RateLimiter
	breaker *Breaker
	retry   RetryPolicy
	timeout time.Duration

	logger     *slog.Logger
	aggregator *ErrorAggregator
	health     *HealthTracker
}

// NewGuard builds a guard from config. Aggregator and health may be nil when
// the caller does not track those concerns.
func NewGuard(cfg GuardConfig, logger *slog.Logger, aggregator *ErrorAggregator, health *HealthTracker) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Service == "" {
		cfg.Service = cfg.Name
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Guard{
		name:       cfg.Name,
		service:    cfg.Service,
		limiter:    NewRateLimiter(cfg.MaxRequests, cfg.RateWindow),
		breaker:    NewBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout),
		retry:      cfg.Retry,
		timeout:    cfg.Timeout,
		logger:     logger,
		aggregator: aggregator,
		health:     health,
	}
}

// Name returns the guarded operation name.
func (g *Guard) Name() string { return g.name }

// BreakerState exposes the breaker position for diagnostics.
func (g *Guard) BreakerState() BreakerState { return g.breaker.State() }

// Do runs op through the guard's wrapper stack: rate limiter at the gate,
// then retry wrapping timeout wrapping circuit breaker wrapping the call.
// Failures are recorded into the aggregator and health tracker per attempt.
func Do[T any](ctx context.Context, g *Guard, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if !g.limiter.Acquire() {
		metrics.RateLimited(g.name)
		err := fmt.Errorf("%s: %w", g.name, ErrRateLimited)
		g.record(err)
		return zero, err
	}

	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			g.logger.Warn("retrying operation",
				slog.String("operation", g.name),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			if err := sleepCtx(ctx, g.retry.Wait(attempt)); err != nil {
				return zero, err
			}
		}

		if err := g.breaker.Allow(); err != nil {
			metrics.BreakerRejected(g.name)
			lastErr = fmt.Errorf("%s: %w", g.name, err)
			g.record(lastErr)
			continue
		}

		start := time.Now()
		result, err := withTimeout(ctx, g.timeout, op)
		g.breaker.Record(err)

		if err == nil {
			metrics.ObserveBackendQuery(g.name, time.Since(start), metrics.OutcomeSuccess)
			if g.health != nil {
				g.health.RecordSuccess(g.service)
			}
			return result, nil
		}

		metrics.ObserveBackendQuery(g.name, time.Since(start), metrics.OutcomeError)
		lastErr = fmt.Errorf("%s: %w", g.name, err)
		g.record(lastErr)
	}

	return zero, lastErr
}

func (g *Guard) record(err error) {
	if g.aggregator != nil {
		g.aggregator.Record(g.name, err, map[string]string{"service": g.service})
	}
	if g.health != nil {
		g.health.RecordFailure(g.service)
	}
}
