package engine

import (
	"context"
	"time"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/resilience"
)

// Diagnostics is the operator-facing rollup of error history, service
// health, breaker positions and effective configuration.
type Diagnostics struct {
	Timestamp       time.Time                           `json:"timestamp"`
	ErrorSummary    resilience.GlobalSummary            `json:"error_summary"`
	ServiceHealth   map[string]resilience.ServiceHealth `json:"service_health"`
	CircuitBreakers map[string]string                   `json:"circuit_breakers"`
	Config          map[string]string                   `json:"configuration,omitempty"`
}

type pingable interface {
	Ping(ctx context.Context) error
}

// HealthCheck probes every configured backend, folds the outcomes into the
// health tracker, and reports per-service connectivity.
func (e *Engine) HealthCheck(ctx context.Context) models.HealthReport {
	probes := map[string]pingable{
		serviceLoki:       e.logs,
		serviceProm:       e.metricsSrc,
		serviceKubernetes: e.events,
	}
	if e.controlPlane != nil {
		probes[serviceCloudWatch] = e.controlPlane
	}

	report := models.HealthReport{
		Timestamp:      time.Now().UTC(),
		OverallHealthy: true,
		Services:       make(map[string]models.ServiceStatus, len(probes)),
	}

	for name, src := range probes {
		var probeErr error
		ok := e.health.Check(ctx, name, func(ctx context.Context) error {
			probeErr = src.Ping(ctx)
			return probeErr
		})

		status := models.ServiceStatus{Connected: ok, Details: "connected"}
		if !ok {
			report.OverallHealthy = false
			status.Details = "connection failed"
			if probeErr != nil {
				status.Details = probeErr.Error()
			}
		}
		report.Services[name] = status
	}
	return report
}

// Diagnostics assembles the error aggregator rollup, the health snapshot,
// the breaker positions and the configuration echo.
func (e *Engine) Diagnostics() Diagnostics {
	breakers := map[string]string{
		serviceLoki:       e.logGuard.BreakerState().String(),
		serviceProm:       e.promGuard.BreakerState().String(),
		serviceKubernetes: e.eventGuard.BreakerState().String(),
	}
	if e.cpGuard != nil {
		breakers[serviceCloudWatch] = e.cpGuard.BreakerState().String()
	}

	return Diagnostics{
		Timestamp:       time.Now().UTC(),
		ErrorSummary:    e.aggregator.SummarizeAll(),
		ServiceHealth:   e.health.Snapshot(),
		CircuitBreakers: breakers,
		Config:          e.configEcho,
	}
}
