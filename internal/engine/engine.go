// Package engine fans pod-telemetry queries out to the configured backends,
// merges the results under partial failure, and derives summaries, anomaly
// flags and trends from whatever came back.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kubestack/kube-debugger/internal/backends"
	"github.com/kubestack/kube-debugger/internal/cache"
	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/resilience"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// Service names used by the health tracker and error aggregator.
const (
	serviceLoki       = "loki"
	serviceProm       = "prometheus"
	serviceKubernetes = "kubernetes"
	serviceCloudWatch = "cloudwatch"
)

// Params collects the collaborators of an Engine. ControlPlane may be nil
// when the deployment has no control-plane access; Reports may be nil to
// disable caching.
type Params struct {
	Logs         backends.LogSource
	Metrics      backends.MetricSource
	Events       backends.EventSource
	ControlPlane backends.ControlPlaneSource

	Reports *cache.ReportCache
	Logger  *slog.Logger

	// GuardConfig customizes the per-backend guard; nil uses the defaults.
	GuardConfig func(name string) resilience.GuardConfig

	// ConfigEcho is surfaced verbatim in diagnostics output.
	ConfigEcho map[string]string
}

// Engine is the correlation core. One Engine is shared by all requests; the
// guards, tracker and aggregator inside it are safe for concurrent use.
type Engine struct {
	logs         backends.LogSource
	metricsSrc   backends.MetricSource
	events       backends.EventSource
	controlPlane backends.ControlPlaneSource

	logGuard   *resilience.Guard
	promGuard  *resilience.Guard
	eventGuard *resilience.Guard
	cpGuard    *resilience.Guard

	health     *resilience.HealthTracker
	aggregator *resilience.ErrorAggregator
	reports    *cache.ReportCache
	logger     *slog.Logger
	configEcho map[string]string
}

// New wires an Engine from its collaborators.
func New(p Params) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	guardCfg := p.GuardConfig
	if guardCfg == nil {
		guardCfg = resilience.DefaultGuardConfig
	}

	services := []string{serviceLoki, serviceProm, serviceKubernetes}
	if p.ControlPlane != nil {
		services = append(services, serviceCloudWatch)
	}

	e := &Engine{
		logs:         p.Logs,
		metricsSrc:   p.Metrics,
		events:       p.Events,
		controlPlane: p.ControlPlane,
		health:       resilience.NewHealthTracker(services...),
		aggregator:   resilience.NewErrorAggregator(),
		reports:      p.Reports,
		logger:       logger,
		configEcho:   p.ConfigEcho,
	}

	e.logGuard = e.newGuard(guardCfg, serviceLoki)
	e.promGuard = e.newGuard(guardCfg, serviceProm)
	e.eventGuard = e.newGuard(guardCfg, serviceKubernetes)
	if p.ControlPlane != nil {
		e.cpGuard = e.newGuard(guardCfg, serviceCloudWatch)
	}
	return e
}

func (e *Engine) newGuard(build func(string) resilience.GuardConfig, name string) *resilience.Guard {
	cfg := build(name)
	cfg.Name = name
	return resilience.NewGuard(cfg, e.logger, e.aggregator, e.health)
}

// GetLogs fetches pod logs for the selector over the window.
func (e *Engine) GetLogs(ctx context.Context, sel models.Selector, w timewindow.Window) (models.LogsPayload, error) {
	if err := sel.Validate(); err != nil {
		return models.LogsPayload{}, err
	}
	return resilience.Do(ctx, e.logGuard, func(ctx context.Context) (models.LogsPayload, error) {
		return e.logs.QueryLogs(ctx, sel, w)
	})
}

// metricQueryNames fixes the order metrics are queried and reported in.
var metricQueryNames = []string{"cpu_usage", "memory_usage", "network_rx", "network_tx"}

func metricQueries(sel models.Selector) map[string]string {
	f := sel.PromFilter()
	return map[string]string{
		"cpu_usage":    fmt.Sprintf(`rate(container_cpu_usage_seconds_total{%s, container!=""}[5m])`, f),
		"memory_usage": fmt.Sprintf(`container_memory_working_set_bytes{%s, container!=""}`, f),
		"network_rx":   fmt.Sprintf(`rate(container_network_receive_bytes_total{%s}[5m])`, f),
		"network_tx":   fmt.Sprintf(`rate(container_network_transmit_bytes_total{%s}[5m])`, f),
	}
}

// GetMetrics runs the four pod resource queries. Individual query failures
// are captured inside the payload; the call itself only fails on a contract
// violation.
func (e *Engine) GetMetrics(ctx context.Context, sel models.Selector, w timewindow.Window) (models.MetricsPayload, error) {
	if err := sel.Validate(); err != nil {
		return models.MetricsPayload{}, err
	}

	queries := metricQueries(sel)
	payload := models.MetricsPayload{Window: w, Metrics: make(map[string]models.MetricQueryResult, len(queries))}
	for _, name := range metricQueryNames {
		query := queries[name]
		series, err := resilience.Do(ctx, e.promGuard, func(ctx context.Context) ([]models.MetricSeries, error) {
			return e.metricsSrc.QueryRange(ctx, query, w)
		})
		if err != nil {
			e.logger.Warn("metric query failed",
				slog.String("metric", name),
				slog.Any("error", err))
			payload.Metrics[name] = models.MetricQueryResult{Err: err.Error()}
			continue
		}
		payload.Metrics[name] = models.MetricQueryResult{Series: series}
	}
	return payload, nil
}

// GetClusterEvents lists Kubernetes events for the selector's namespace
// within the window.
func (e *Engine) GetClusterEvents(ctx context.Context, sel models.Selector, w timewindow.Window) (models.EventsPayload, error) {
	if err := sel.Validate(); err != nil {
		return models.EventsPayload{}, err
	}
	return resilience.Do(ctx, e.eventGuard, func(ctx context.Context) (models.EventsPayload, error) {
		return e.events.Events(ctx, sel, w)
	})
}

// GetControlPlaneEvents fetches management-plane events for the window.
func (e *Engine) GetControlPlaneEvents(ctx context.Context, w timewindow.Window, pattern string) (models.ControlPlanePayload, error) {
	if e.controlPlane == nil {
		return models.ControlPlanePayload{}, fmt.Errorf("control plane source: %w", resilience.ErrUnavailable)
	}
	return resilience.Do(ctx, e.cpGuard, func(ctx context.Context) (models.ControlPlanePayload, error) {
		return e.controlPlane.ControlPlaneEvents(ctx, w, pattern)
	})
}

// Errors exposes the aggregator for diagnostics surfaces.
func (e *Engine) Errors() *resilience.ErrorAggregator { return e.aggregator }

// Health exposes the health tracker for diagnostics surfaces.
func (e *Engine) Health() *resilience.HealthTracker { return e.health }
