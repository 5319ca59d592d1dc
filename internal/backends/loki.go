package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
	"github.com/kubestack/kube-debugger/internal/utils"
)

// LokiClient queries a Loki instance reachable through a Grafana proxy.
type LokiClient struct {
	baseURL    string
	apiKey     string
	limit      int
	httpClient *http.Client
}

// NewLokiClient constructs a client rooted at grafanaURL joined with
// lokiPath (typically /loki/api/v1).
func NewLokiClient(grafanaURL, lokiPath, apiKey string, limit int, timeout time.Duration) *LokiClient {
	if limit <= 0 {
		limit = 1000
	}
	return &LokiClient{
		baseURL:    joinURL(grafanaURL, lokiPath),
		apiKey:     apiKey,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type lokiQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// QueryLogs runs a LogQL range query built from the selector and returns
// the streams ordered oldest first within each stream.
func (c *LokiClient) QueryLogs(ctx context.Context, sel models.Selector, w timewindow.Window) (models.LogsPayload, error) {
	query, err := sel.LokiQuery()
	if err != nil {
		return models.LogsPayload{}, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(w.Start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(w.End.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(c.limit))

	var resp lokiQueryResponse
	if err := c.getJSON(ctx, "/query_range", params, &resp); err != nil {
		return models.LogsPayload{}, utils.NewAppError("loki.query_range", "log query failed", err)
	}
	if resp.Status != "success" {
		return models.LogsPayload{}, utils.NewAppError("loki.query_range", fmt.Sprintf("loki returned status %q", resp.Status), nil)
	}

	payload := models.LogsPayload{Query: query, Window: w, Streams: make([]models.LogStream, 0, len(resp.Data.Result))}
	for _, raw := range resp.Data.Result {
		stream := models.LogStream{Labels: raw.Stream, Records: make([]models.LogRecord, 0, len(raw.Values))}
		for _, v := range raw.Values {
			ns, err := strconv.ParseInt(v[0], 10, 64)
			if err != nil {
				continue
			}
			stream.Records = append(stream.Records, models.LogRecord{
				Timestamp: time.Unix(0, ns).UTC(),
				Line:      v[1],
			})
		}
		sort.Slice(stream.Records, func(i, j int) bool {
			return stream.Records[i].Timestamp.Before(stream.Records[j].Timestamp)
		})
		payload.Streams = append(payload.Streams, stream)
	}
	return payload, nil
}

// Ping verifies the Loki endpoint responds to a labels request.
func (c *LokiClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("start", strconv.FormatInt(time.Now().Add(-time.Minute).UnixNano(), 10))
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/labels", params, &resp); err != nil {
		return utils.NewAppError("loki.ping", "labels probe failed", err)
	}
	return nil
}

func (c *LokiClient) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
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
		return fmt.Errorf("loki returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func joinURL(base, p string) string {
	base = strings.TrimRight(base, "/")
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(base)
	if err != nil {
		return base + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
