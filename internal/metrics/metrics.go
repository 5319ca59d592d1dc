package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful queries and correlations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed queries and correlations.
	OutcomeError = "error"
	// OutcomePartial labels correlations where some but not all slots failed.
	OutcomePartial = "partial"
)

var (
	backendQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kube_debugger",
			Name:      "backend_queries_total",
			Help:      "Total backend queries issued, partitioned by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	backendQuerySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kube_debugger",
			Name:      "backend_query_seconds",
			Help:      "Backend query latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"backend"},
	)

	correlationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kube_debugger",
			Name:      "correlations_total",
			Help:      "Total correlation requests handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	correlationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kube_debugger",
			Name:      "correlation_seconds",
			Help:      "End-to-end correlation latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kube_debugger",
			Name:      "rate_limited_total",
			Help:      "Calls rejected by the per-backend rate limiter.",
		},
		[]string{"backend"},
	)

	breakerRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kube_debugger",
			Name:      "breaker_rejected_total",
			Help:      "Calls rejected by an open circuit breaker.",
		},
		[]string{"backend"},
	)
)

// Register attaches kube-debugger collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		backendQueriesTotal,
		backendQuerySeconds,
		correlationsTotal,
		correlationSeconds,
		rateLimitedTotal,
		breakerRejectedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveBackendQuery records one backend call's duration and outcome label.
func ObserveBackendQuery(backend string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	backendQueriesTotal.WithLabelValues(backend, label).Inc()
	if duration < 0 {
		duration = 0
	}
	backendQuerySeconds.WithLabelValues(backend).Observe(duration.Seconds())
}

// ObserveCorrelation records a correlation duration and outcome label.
func ObserveCorrelation(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError && label != OutcomePartial {
		label = OutcomeSuccess
	}
	correlationsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	correlationSeconds.Observe(duration.Seconds())
}

// RateLimited counts a rate-limiter rejection for the backend.
func RateLimited(backend string) {
	rateLimitedTotal.WithLabelValues(backend).Inc()
}

// BreakerRejected counts a circuit-breaker rejection for the backend.
func BreakerRejected(backend string) {
	breakerRejectedTotal.WithLabelValues(backend).Inc()
}
