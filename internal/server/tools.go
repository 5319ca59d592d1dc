package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kubestack/kube-debugger/internal/engine"
	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// toolHandler executes one tool invocation. A returned error is a contract
// violation answered with 400; backend failures are embedded in the result.
type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool describes one invocable tool for the manifest.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// toolRequest is the shared argument shape; tools read the fields they need.
type toolRequest struct {
	Namespace           string `json:"namespace"`
	PodName             string `json:"pod_name"`
	LabelSelector       string `json:"label_selector"`
	TimeRange           string `json:"time_range"`
	WindowSize          string `json:"window_size"`
	FilterPattern       string `json:"filter_pattern"`
	IncludeControlPlane bool   `json:"include_control_plane"`
}

func (r toolRequest) selector() models.Selector {
	return models.Selector{
		Namespace:     strings.TrimSpace(r.Namespace),
		PodName:       strings.TrimSpace(r.PodName),
		LabelSelector: strings.TrimSpace(r.LabelSelector),
	}
}

func (r toolRequest) window() timewindow.Window {
	return timewindow.Parse(r.TimeRange)
}

func decodeArgs(args json.RawMessage) (toolRequest, error) {
	var req toolRequest
	if len(args) == 0 {
		return req, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(args)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid arguments: %w", err)
	}
	return req, nil
}

// tools builds the registry binding each tool name to its engine operation.
func (s *Server) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"get_pod_logs": func(ctx context.Context, args json.RawMessage) (any, error) {
			req, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			payload, err := s.engine.GetLogs(ctx, req.selector(), req.window())
			if err != nil {
				return resultOrReject(payload, err)
			}
			return payload, nil
		},
		"get_pod_metrics": func(ctx context.Context, args json.RawMessage) (any, error) {
			req, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			payload, err := s.engine.GetMetrics(ctx, req.selector(), req.window())
			if err != nil {
				return resultOrReject(payload, err)
			}
			return payload, nil
		},
		"get_cluster_events": func(ctx context.Context, args json.RawMessage) (any, error) {
			req, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			payload, err := s.engine.GetClusterEvents(ctx, req.selector(), req.window())
			if err != nil {
				return resultOrReject(payload, err)
			}
			return payload, nil
		},
		"get_control_plane_events": func(ctx context.Context, args json.RawMessage) (any, error) {
			req, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			payload, err := s.engine.GetControlPlaneEvents(ctx, req.window(), req.FilterPattern)
			if err != nil {
				return models.Fail[models.ControlPlanePayload](err), nil
			}
			return payload, nil
		},
		"correlate_pod_data": func(ctx context.Context, args json.RawMessage) (any, error) {
			req, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			return s.engine.Correlate(ctx, req.selector(), req.window())
		},
		"get_enhanced_correlation": func(ctx context.Context, args json.RawMessage) (any, error) {
			req, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			return s.engine.CorrelateEnhanced(ctx, req.selector(), req.window(), req.IncludeControlPlane)
		},
		"analyze_time_correlation": func(ctx context.Context, args json.RawMessage) (any, error) {
			req, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			windowSize := req.WindowSize
			if windowSize == "" {
				windowSize = "10m"
			}
			return s.engine.AnalyzeTimeWindows(ctx, req.selector(), req.TimeRange, windowSize)
		},
		"comprehensive_health_check": func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.engine.HealthCheck(ctx), nil
		},
		"get_system_diagnostics": func(ctx context.Context, _ json.RawMessage) (any, error) {
			diag := s.engine.Diagnostics()
			return systemDiagnostics{
				Diagnostics: diag,
				ToolLatency: latencyStats{
					Samples: s.latency.Count(),
					P50:     s.latency.Percentile(50).String(),
					P95:     s.latency.Percentile(95).String(),
				},
			}, nil
		},
	}
}

// systemDiagnostics augments the engine rollup with server-side tool
// latency percentiles.
type systemDiagnostics struct {
	engine.Diagnostics
	ToolLatency latencyStats `json:"tool_latency"`
}

type latencyStats struct {
	Samples int    `json:"samples"`
	P50     string `json:"p50"`
	P95     string `json:"p95"`
}

// resultOrReject maps engine errors at the tool boundary: contract
// violations reject the request, backend failures become the payload.
func resultOrReject[T any](_ T, err error) (any, error) {
	if isContractViolation(err) {
		return nil, err
	}
	return models.Fail[T](err), nil
}

func isContractViolation(err error) bool {
	var malformed *models.MalformedSelectorError
	if errors.As(err, &malformed) {
		return true
	}
	return strings.Contains(err.Error(), "namespace is required")
}

// manifest lists the available tools in a stable order.
func manifest() []Tool {
	return []Tool{
		{Name: "get_pod_logs", Description: "Fetch pod logs for a namespace, pod or label selector over a time range."},
		{Name: "get_pod_metrics", Description: "Fetch CPU, memory and network metrics for a pod over a time range."},
		{Name: "get_cluster_events", Description: "List Kubernetes events in a namespace over a time range."},
		{Name: "get_control_plane_events", Description: "Fetch EKS control-plane log events over a time range."},
		{Name: "correlate_pod_data", Description: "Correlate logs, metrics and events for a pod into one report."},
		{Name: "get_enhanced_correlation", Description: "Correlate pod telemetry with optional control-plane events."},
		{Name: "analyze_time_correlation", Description: "Slice a time range into windows and detect anomalies and trends."},
		{Name: "comprehensive_health_check", Description: "Probe every configured backend and report connectivity."},
		{Name: "get_system_diagnostics", Description: "Report error history, service health and breaker states."},
	}
}

// requestTimeout bounds one tool invocation end to end.
const requestTimeout = 2 * time.Minute
