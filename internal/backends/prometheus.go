package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
	"github.com/kubestack/kube-debugger/internal/utils"
)

// PrometheusClient runs PromQL range queries against a Prometheus instance
// reachable through a Grafana proxy.
type PrometheusClient struct {
	baseURL    string
	apiKey     string
	step       time.Duration
	httpClient *http.Client
}

// NewPrometheusClient constructs a client rooted at grafanaURL joined with
// promPath (typically /api/v1). step sizes the range-query resolution.
func NewPrometheusClient(grafanaURL, promPath, apiKey string, step, timeout time.Duration) *PrometheusClient {
	if step <= 0 {
		step = 30 * time.Second
	}
	return &PrometheusClient{
		baseURL:    joinURL(grafanaURL, promPath),
		apiKey:     apiKey,
		step:       step,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type promQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string    `json:"metric"`
			Values [][2]json.RawMessage `json:"values"`
		} `json:"result"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// QueryRange evaluates query over the window and returns the resulting
// matrix as labelled series.
func (c *PrometheusClient) QueryRange(ctx context.Context, query string, w timewindow.Window) ([]models.MetricSeries, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(w.Start.Unix(), 10))
	params.Set("end", strconv.FormatInt(w.End.Unix(), 10))
	params.Set("step", strconv.Itoa(int(c.step.Seconds())))

	var resp promQueryResponse
	if err := c.getJSON(ctx, "/query_range", params, &resp); err != nil {
		return nil, utils.NewAppError("prometheus.query_range", "metric query failed", err)
	}
	if resp.Status != "success" {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("status %q", resp.Status)
		}
		return nil, utils.NewAppError("prometheus.query_range", "prometheus rejected query: "+msg, nil)
	}

	series := make([]models.MetricSeries, 0, len(resp.Data.Result))
	for _, raw := range resp.Data.Result {
		s := models.MetricSeries{Labels: raw.Metric, Points: make([]models.MetricPoint, 0, len(raw.Values))}
		for _, pair := range raw.Values {
			var ts float64
			var valStr string
			if err := json.Unmarshal(pair[0], &ts); err != nil {
				continue
			}
			if err := json.Unmarshal(pair[1], &valStr); err != nil {
				continue
			}
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				continue
			}
			sec, frac := int64(ts), ts-float64(int64(ts))
			s.Points = append(s.Points, models.MetricPoint{
				Timestamp: time.Unix(sec, int64(frac*float64(time.Second))).UTC(),
				Value:     val,
			})
		}
		series = append(series, s)
	}
	return series, nil
}

// Ping evaluates a constant vector to verify the query path works.
func (c *PrometheusClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("query", "vector(1)")
	var resp promQueryResponse
	if err := c.getJSON(ctx, "/query", params, &resp); err != nil {
		return utils.NewAppError("prometheus.ping", "query probe failed", err)
	}
	if resp.Status != "success" {
		return utils.NewAppError("prometheus.ping", fmt.Sprintf("prometheus returned status %q", resp.Status), nil)
	}
	return nil
}

func (c *PrometheusClient) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prometheus returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
