package backends

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

func testWindow() timewindow.Window {
	return timewindow.Window{
		Start: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLokiQueryLogsParsesStreams(t *testing.T) {
	body := `{
		"status": "success",
		"data": {
			"resultType": "streams",
			"result": [
				{
					"stream": {"namespace": "payments", "pod": "api-1"},
					"values": [
						["1748775600000000000", "second line"],
						["1748775000000000000", "first line"]
					]
				}
			]
		}
	}`

	var gotURL string
	client := NewLokiClient("https://grafana.example.com", "/loki/api/v1", "token-123", 500, time.Second)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		if auth := req.Header.Get("Authorization"); auth != "Bearer token-123" {
			t.Fatalf("unexpected auth header %q", auth)
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(body))}, nil
	})

	sel := models.Selector{Namespace: "payments", PodName: "api-1"}
	payload, err := client.QueryLogs(context.Background(), sel, testWindow())
	if err != nil {
		t.Fatalf("QueryLogs returned error: %v", err)
	}

	if len(payload.Streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(payload.Streams))
	}
	records := payload.Streams[0].Records
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Line != "first line" || records[1].Line != "second line" {
		t.Errorf("records not sorted oldest first: %+v", records)
	}
	if payload.EntryCount() != 2 {
		t.Errorf("EntryCount() = %d, want 2", payload.EntryCount())
	}
	if payload.Query != `{namespace="payments", pod="api-1"}` {
		t.Errorf("unexpected query %q", payload.Query)
	}
	if gotURL == "" || !bytes.Contains([]byte(gotURL), []byte("/loki/api/v1/query_range")) {
		t.Errorf("request did not hit query_range endpoint: %s", gotURL)
	}
	if !bytes.Contains([]byte(gotURL), []byte("limit=500")) {
		t.Errorf("configured limit not sent: %s", gotURL)
	}
}

func TestLokiQueryLogsUpstreamError(t *testing.T) {
	client := NewLokiClient("https://grafana.example.com", "/loki/api/v1", "", 0, time.Second)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Status:     "502 Bad Gateway",
			Body:       io.NopCloser(bytes.NewBufferString("")),
		}, nil
	})

	_, err := client.QueryLogs(context.Background(), models.Selector{Namespace: "default", PodName: "p"}, testWindow())
	if err == nil {
		t.Fatal("expected error from upstream 502")
	}
}

func TestLokiQueryLogsRejectsMalformedSelector(t *testing.T) {
	client := NewLokiClient("https://grafana.example.com", "/loki/api/v1", "", 0, time.Second)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request should be issued for a malformed selector")
		return nil, nil
	})

	sel := models.Selector{Namespace: "default", LabelSelector: "appweb"}
	if _, err := client.QueryLogs(context.Background(), sel, testWindow()); err == nil {
		t.Fatal("expected selector validation error")
	}
}
