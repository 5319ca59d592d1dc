// Package backends holds the telemetry source adapters the correlation
// engine fans out to. Each adapter translates one upstream API (Loki,
// Prometheus, the Kubernetes API, CloudWatch Logs) into the domain
// payload types and reports reachability through Ping.
package backends

import (
	"context"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// LogSource serves pod log queries.
type LogSource interface {
	QueryLogs(ctx context.Context, sel models.Selector, w timewindow.Window) (models.LogsPayload, error)
	Ping(ctx context.Context) error
}

// MetricSource serves PromQL range queries.
type MetricSource interface {
	QueryRange(ctx context.Context, query string, w timewindow.Window) ([]models.MetricSeries, error)
	Ping(ctx context.Context) error
}

// EventSource serves namespaced Kubernetes events.
type EventSource interface {
	Events(ctx context.Context, sel models.Selector, w timewindow.Window) (models.EventsPayload, error)
	Ping(ctx context.Context) error
}

// ControlPlaneSource serves management-plane log events. Implementations
// may be absent entirely when the deployment has no control-plane access.
type ControlPlaneSource interface {
	ControlPlaneEvents(ctx context.Context, w timewindow.Window, pattern string) (models.ControlPlanePayload, error)
	Ping(ctx context.Context) error
}
