package models

import (
	"time"

	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// CorrelationReport merges the outcome of the concurrent backend queries for
// one selector and window. Each slot is independently a payload or a failure;
// a nil ControlPlane slot means that source was not attempted.
type CorrelationReport struct {
	Selector     Selector                     `json:"correlation"`
	Window       timewindow.Window            `json:"time_range"`
	Logs         Result[LogsPayload]          `json:"logs"`
	Metrics      Result[MetricsPayload]       `json:"metrics"`
	Events       Result[EventsPayload]        `json:"events"`
	ControlPlane *Result[ControlPlanePayload] `json:"control_plane,omitempty"`
	Summary      Summary                      `json:"summary"`
}

// ControlPlaneSummary counts management-plane events and error patterns.
type ControlPlaneSummary struct {
	Events       int `json:"events"`
	ErrorMatches int `json:"error_matches"`
	RecentIssues int `json:"recent_issues"`
}

// Summary is a pure function of the report slots.
//
// HighCPUUsage and HighMemoryUsage are reserved for metric-threshold logic
// that has not been specified yet; they are always false today.
type Summary struct {
	LogEntries      int                  `json:"log_entries"`
	ErrorLogs       int                  `json:"error_logs"`
	WarningEvents   int                  `json:"warning_events"`
	ErrorEvents     int                  `json:"error_events"`
	HighCPUUsage    bool                 `json:"high_cpu_usage"`
	HighMemoryUsage bool                 `json:"high_memory_usage"`
	ControlPlane    *ControlPlaneSummary `json:"control_plane,omitempty"`
}

// WindowAnalysis is the reduced per-window correlation produced by the time
// window analyzer. Err is set when the whole window failed to analyze.
type WindowAnalysis struct {
	Window           timewindow.Window `json:"time_window"`
	LogCount         int               `json:"log_count"`
	ErrorCount       int               `json:"error_count"`
	MetricsAvailable bool              `json:"metrics_available"`
	Anomalies        []string          `json:"anomalies,omitempty"`
	Err              string            `json:"error,omitempty"`
}

// VolumeTrend aggregates log volume across analyzed windows. Direction is
// "increasing", "decreasing" or "stable".
type VolumeTrend struct {
	Average   float64 `json:"average"`
	Peak      int     `json:"peak"`
	Minimum   int     `json:"minimum"`
	Direction string  `json:"trend"`
}

// ErrorTrend aggregates error counts across analyzed windows.
type ErrorTrend struct {
	TotalErrors  int `json:"total_errors"`
	PeakErrors   int `json:"peak_errors"`
	ErrorWindows int `json:"error_windows"`
}

// TrendReport summarizes cross-window behaviour. Err flags the explicit
// no-data case when no window analyzed successfully.
type TrendReport struct {
	Err          string       `json:"error,omitempty"`
	LogVolume    *VolumeTrend `json:"log_volume,omitempty"`
	ErrorPattern *ErrorTrend  `json:"error_pattern,omitempty"`
}

// TimeAnalysis is the full output of analyze_time_correlation.
type TimeAnalysis struct {
	Namespace    string            `json:"namespace"`
	PodName      string            `json:"pod_name"`
	TotalRange   string            `json:"total_time_range"`
	WindowSize   string            `json:"window_size"`
	TotalWindows int               `json:"total_windows"`
	Windows      []WindowAnalysis  `json:"windows"`
	Trends       TrendReport       `json:"trends"`
	Window       timewindow.Window `json:"time_range"`
}

// ServiceStatus describes connectivity to one external collaborator.
type ServiceStatus struct {
	Connected bool   `json:"connected"`
	Details   string `json:"details"`
}

// HealthReport is the per-service health rollup returned by the health tool.
type HealthReport struct {
	Timestamp      time.Time                `json:"timestamp"`
	OverallHealthy bool                     `json:"overall_healthy"`
	Services       map[string]ServiceStatus `json:"services"`
}
