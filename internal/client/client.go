// Package client is the HTTP companion to the tool server, mirroring its
// tool surface one method per tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kubestack/kube-debugger/internal/models"
)

// Client invokes debugger tools over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Tool mirrors one manifest entry.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// queryArgs is the wire argument object shared by the telemetry tools.
type queryArgs struct {
	Namespace           string `json:"namespace,omitempty"`
	PodName             string `json:"pod_name,omitempty"`
	LabelSelector       string `json:"label_selector,omitempty"`
	TimeRange           string `json:"time_range,omitempty"`
	WindowSize          string `json:"window_size,omitempty"`
	FilterPattern       string `json:"filter_pattern,omitempty"`
	IncludeControlPlane bool   `json:"include_control_plane,omitempty"`
}

func selectorArgs(sel models.Selector, timeRange string) queryArgs {
	return queryArgs{
		Namespace:     sel.Namespace,
		PodName:       sel.PodName,
		LabelSelector: sel.LabelSelector,
		TimeRange:     timeRange,
	}
}

// Tools fetches the server's tool manifest.
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []Tool `json:"tools"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// Logs fetches pod logs for the selector over the range expression.
func (c *Client) Logs(ctx context.Context, sel models.Selector, timeRange string) (models.LogsPayload, error) {
	return invoke[models.LogsPayload](ctx, c, "get_pod_logs", selectorArgs(sel, timeRange))
}

// Metrics fetches the pod resource metrics over the range expression.
func (c *Client) Metrics(ctx context.Context, sel models.Selector, timeRange string) (models.MetricsPayload, error) {
	return invoke[models.MetricsPayload](ctx, c, "get_pod_metrics", selectorArgs(sel, timeRange))
}

// ClusterEvents lists Kubernetes events for the selector's namespace.
func (c *Client) ClusterEvents(ctx context.Context, sel models.Selector, timeRange string) (models.EventsPayload, error) {
	return invoke[models.EventsPayload](ctx, c, "get_cluster_events", selectorArgs(sel, timeRange))
}

// ControlPlaneEvents fetches management-plane events, optionally filtered.
func (c *Client) ControlPlaneEvents(ctx context.Context, timeRange, pattern string) (models.ControlPlanePayload, error) {
	return invoke[models.ControlPlanePayload](ctx, c, "get_control_plane_events", queryArgs{
		TimeRange:     timeRange,
		FilterPattern: pattern,
	})
}

// Correlate runs the three-way correlation for the selector.
func (c *Client) Correlate(ctx context.Context, sel models.Selector, timeRange string) (models.CorrelationReport, error) {
	var report models.CorrelationReport
	err := c.invokeRaw(ctx, "correlate_pod_data", selectorArgs(sel, timeRange), &report)
	return report, err
}

// CorrelateEnhanced runs the correlation with the optional fourth slot.
func (c *Client) CorrelateEnhanced(ctx context.Context, sel models.Selector, timeRange string, includeControlPlane bool) (models.CorrelationReport, error) {
	args := selectorArgs(sel, timeRange)
	args.IncludeControlPlane = includeControlPlane
	var report models.CorrelationReport
	err := c.invokeRaw(ctx, "get_enhanced_correlation", args, &report)
	return report, err
}

// AnalyzeTimeWindows slices the range and returns anomalies and trends.
func (c *Client) AnalyzeTimeWindows(ctx context.Context, sel models.Selector, timeRange, windowSize string) (models.TimeAnalysis, error) {
	args := selectorArgs(sel, timeRange)
	args.WindowSize = windowSize
	var analysis models.TimeAnalysis
	err := c.invokeRaw(ctx, "analyze_time_correlation", args, &analysis)
	return analysis, err
}

// HealthCheck probes every backend through the server.
func (c *Client) HealthCheck(ctx context.Context) (models.HealthReport, error) {
	var report models.HealthReport
	err := c.invokeRaw(ctx, "comprehensive_health_check", struct{}{}, &report)
	return report, err
}

// Diagnostics fetches the raw diagnostics document.
func (c *Client) Diagnostics(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.invokeRaw(ctx, "get_system_diagnostics", struct{}{}, &raw)
	return raw, err
}

// invoke calls a tool whose response is either the payload or an error
// object, surfacing the latter as a Go error.
func invoke[T any](ctx context.Context, c *Client, tool string, args any) (T, error) {
	var result models.Result[T]
	if err := c.invokeRaw(ctx, tool, args, &result); err != nil {
		var zero T
		return zero, err
	}
	if result.Failed() {
		var zero T
		return zero, errors.New(result.Err)
	}
	return result.Data, nil
}

func (c *Client) invokeRaw(ctx context.Context, tool string, args any, out any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/"+tool, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server rejected request: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
