package models

import (
	"time"

	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// LogRecord is a single log line with its ingestion timestamp.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Line      string    `json:"line"`
}

// LogStream groups log records sharing one label set, mirroring the Loki
// stream shape.
type LogStream struct {
	Labels  map[string]string `json:"labels"`
	Records []LogRecord       `json:"records"`
}

// LogsPayload is the log slot of a correlation report.
type LogsPayload struct {
	Streams []LogStream       `json:"streams"`
	Query   string            `json:"query"`
	Window  timewindow.Window `json:"time_range"`
}

// EntryCount returns the total number of records across all streams.
func (p LogsPayload) EntryCount() int {
	total := 0
	for _, s := range p.Streams {
		total += len(s.Records)
	}
	return total
}

// MetricPoint is one sample of a metric series.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricSeries is a labelled sequence of samples.
type MetricSeries struct {
	Labels map[string]string `json:"labels"`
	Points []MetricPoint     `json:"points"`
}

// MetricQueryResult holds the outcome of one named PromQL query. A metrics
// slot can succeed as a whole while individual queries inside it fail.
type MetricQueryResult struct {
	Series []MetricSeries `json:"series,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// MetricsPayload is the metrics slot of a correlation report, keyed by
// metric name (cpu_usage, memory_usage, network_rx, network_tx).
type MetricsPayload struct {
	Metrics map[string]MetricQueryResult `json:"metrics"`
	Window  timewindow.Window            `json:"time_range"`
}

// ObjectRef identifies the Kubernetes object an event refers to.
type ObjectRef struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// ClusterEvent is a Kubernetes event scoped to a namespace.
type ClusterEvent struct {
	Name           string    `json:"name"`
	Namespace      string    `json:"namespace"`
	Reason         string    `json:"reason"`
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	Object         ObjectRef `json:"object"`
	FirstTimestamp time.Time `json:"first_timestamp"`
	LastTimestamp  time.Time `json:"last_timestamp,omitempty"`
	Count          int32     `json:"count"`
}

// EventsPayload is the cluster-event slot of a correlation report.
type EventsPayload struct {
	Events    []ClusterEvent `json:"events"`
	Namespace string         `json:"namespace"`
}

// ControlPlaneEvent is a management-plane log event external to the
// workload cluster API (e.g. EKS control plane logs).
type ControlPlaneEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	LogStream string    `json:"log_stream,omitempty"`
}

// ControlPlanePayload is the optional fourth slot of an enhanced correlation.
type ControlPlanePayload struct {
	Events  []ControlPlaneEvent `json:"events"`
	Cluster string              `json:"cluster"`
	Total   int                 `json:"total_events"`
}
