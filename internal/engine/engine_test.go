package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kubestack/kube-debugger/internal/cache"
	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/resilience"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

func testWindow() timewindow.Window {
	return timewindow.Window{
		Start: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// fastGuards keeps tests quick: single attempt, generous budgets.
func fastGuards(name string) resilience.GuardConfig {
	cfg := resilience.DefaultGuardConfig(name)
	cfg.Retry.MaxAttempts = 1
	cfg.MaxRequests = 10000
	return cfg
}

type fakeLogSource struct {
	payload models.LogsPayload
	err     error
	panics  bool
	// seq, when set, serves one response per call in order; the analyzer
	// queries sub-windows sequentially so call order matches window order.
	seq     []models.LogsPayload
	seqErrs []error
	calls   int
}

func (f *fakeLogSource) QueryLogs(_ context.Context, _ models.Selector, _ timewindow.Window) (models.LogsPayload, error) {
	if f.panics {
		panic("loki exploded")
	}
	if f.seq != nil {
		i := f.calls
		f.calls++
		if i >= len(f.seq) {
			return models.LogsPayload{}, errors.New("unexpected extra log query")
		}
		if i < len(f.seqErrs) && f.seqErrs[i] != nil {
			return models.LogsPayload{}, f.seqErrs[i]
		}
		return f.seq[i], nil
	}
	f.calls++
	return f.payload, f.err
}

func (f *fakeLogSource) Ping(context.Context) error { return nil }

type fakeMetricSource struct {
	series []models.MetricSeries
	err    error
}

func (f *fakeMetricSource) QueryRange(context.Context, string, timewindow.Window) ([]models.MetricSeries, error) {
	return f.series, f.err
}

func (f *fakeMetricSource) Ping(context.Context) error { return nil }

type fakeEventSource struct {
	payload models.EventsPayload
	err     error
	panics  bool
	pingErr error
}

func (f *fakeEventSource) Events(_ context.Context, sel models.Selector, _ timewindow.Window) (models.EventsPayload, error) {
	if f.panics {
		panic("events exploded")
	}
	return f.payload, f.err
}

func (f *fakeEventSource) Ping(context.Context) error { return f.pingErr }

type fakeControlPlaneSource struct {
	payload models.ControlPlanePayload
	err     error
}

func (f *fakeControlPlaneSource) ControlPlaneEvents(context.Context, timewindow.Window, string) (models.ControlPlanePayload, error) {
	return f.payload, f.err
}

func (f *fakeControlPlaneSource) Ping(context.Context) error { return nil }

func logsWith(lines ...[]string) models.LogsPayload {
	payload := models.LogsPayload{}
	ts := time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)
	for _, streamLines := range lines {
		stream := models.LogStream{Labels: map[string]string{"pod": "api-1"}}
		for i, line := range streamLines {
			stream.Records = append(stream.Records, models.LogRecord{
				Timestamp: ts.Add(time.Duration(i) * time.Second),
				Line:      line,
			})
		}
		payload.Streams = append(payload.Streams, stream)
	}
	return payload
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestEngine(logs *fakeLogSource, ms *fakeMetricSource, ev *fakeEventSource, cp *fakeControlPlaneSource) *Engine {
	params := Params{
		Logs:        logs,
		Metrics:     ms,
		Events:      ev,
		Logger:      quietLogger(),
		GuardConfig: fastGuards,
	}
	if cp != nil {
		params.ControlPlane = cp
	}
	return New(params)
}

func TestCorrelateBuildsSummaryFromSlots(t *testing.T) {
	logs := &fakeLogSource{payload: logsWith(
		[]string{"started", "ERROR: connect refused", "listening", "ready", "ok"},
		[]string{"GET /health", "unhandled exception in worker", "done"},
	)}
	ms := &fakeMetricSource{series: []models.MetricSeries{{Labels: map[string]string{"pod": "api-1"}}}}
	ev := &fakeEventSource{payload: models.EventsPayload{
		Namespace: "payments",
		Events: []models.ClusterEvent{
			{Type: "Warning", Reason: "BackOff"},
			{Type: "Warning", Reason: "Unhealthy"},
			{Type: "Error", Reason: "FailedMount"},
			{Type: "Normal", Reason: "Pulled"},
		},
	}}

	e := newTestEngine(logs, ms, ev, nil)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}

	report, err := e.Correlate(context.Background(), sel, testWindow())
	if err != nil {
		t.Fatalf("Correlate returned error: %v", err)
	}

	if report.Logs.Failed() || report.Metrics.Failed() || report.Events.Failed() {
		t.Fatalf("no slot should fail: %+v", report)
	}
	if report.Summary.LogEntries != 8 {
		t.Errorf("log_entries = %d, want 8", report.Summary.LogEntries)
	}
	if report.Summary.ErrorLogs != 2 {
		t.Errorf("error_logs = %d, want 2", report.Summary.ErrorLogs)
	}
	if report.Summary.WarningEvents != 2 || report.Summary.ErrorEvents != 1 {
		t.Errorf("event counts = %d/%d, want 2/1", report.Summary.WarningEvents, report.Summary.ErrorEvents)
	}
	if report.Summary.HighCPUUsage || report.Summary.HighMemoryUsage {
		t.Error("resource flags must stay false")
	}
	if report.ControlPlane != nil {
		t.Error("plain correlate must not attempt the control plane")
	}
}

func TestCorrelateIsolatesSlotFailure(t *testing.T) {
	logs := &fakeLogSource{payload: logsWith([]string{"fine"})}
	ms := &fakeMetricSource{}
	ev := &fakeEventSource{err: errors.New("api server unreachable")}

	e := newTestEngine(logs, ms, ev, nil)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}

	report, err := e.Correlate(context.Background(), sel, testWindow())
	if err != nil {
		t.Fatalf("Correlate returned error: %v", err)
	}

	if !report.Events.Failed() {
		t.Fatal("events slot should carry the failure")
	}
	if !strings.Contains(report.Events.Err, "api server unreachable") {
		t.Errorf("failure message lost: %q", report.Events.Err)
	}
	if report.Logs.Failed() {
		t.Error("logs slot must not be affected by the events failure")
	}
	if report.Summary.LogEntries != 1 {
		t.Errorf("summary must still count the successful slots: %d", report.Summary.LogEntries)
	}
	if report.Summary.WarningEvents != 0 {
		t.Errorf("failed slot must contribute nothing to the summary")
	}
}

func TestCorrelateIsolatesPanic(t *testing.T) {
	logs := &fakeLogSource{payload: logsWith([]string{"fine"})}
	ms := &fakeMetricSource{}
	ev := &fakeEventSource{panics: true}

	e := newTestEngine(logs, ms, ev, nil)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}

	report, err := e.Correlate(context.Background(), sel, testWindow())
	if err != nil {
		t.Fatalf("a panicking slot must not fail the correlation: %v", err)
	}
	if !report.Events.Failed() {
		t.Fatal("panic must surface as the slot's failure")
	}
	if !strings.Contains(report.Events.Err, "panicked") {
		t.Errorf("unexpected failure message: %q", report.Events.Err)
	}
	if report.Logs.Failed() || report.Metrics.Failed() {
		t.Error("sibling slots must survive the panic")
	}
}

func TestCorrelateRejectsInvalidSelector(t *testing.T) {
	e := newTestEngine(&fakeLogSource{}, &fakeMetricSource{}, &fakeEventSource{}, nil)

	if _, err := e.Correlate(context.Background(), models.Selector{}, testWindow()); err == nil {
		t.Fatal("missing namespace must be a hard failure")
	}

	sel := models.Selector{Namespace: "ns", LabelSelector: "appweb"}
	_, err := e.Correlate(context.Background(), sel, testWindow())
	var malformed *models.MalformedSelectorError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSelectorError, got %v", err)
	}
}

func TestCorrelateEnhancedControlPlaneSummary(t *testing.T) {
	now := time.Now().UTC()
	cp := &fakeControlPlaneSource{payload: models.ControlPlanePayload{
		Cluster: "prod-cluster",
		Total:   3,
		Events: []models.ControlPlaneEvent{
			{Timestamp: now.Add(-5 * time.Minute), Message: "authentication FAILED for node"},
			{Timestamp: now.Add(-2 * time.Hour), Message: "timeout waiting for etcd"},
			{Timestamp: now.Add(-10 * time.Minute), Message: "routine compaction complete"},
		},
	}}
	logs := &fakeLogSource{payload: logsWith([]string{"fine"})}
	e := newTestEngine(logs, &fakeMetricSource{}, &fakeEventSource{}, cp)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}

	report, err := e.CorrelateEnhanced(context.Background(), sel, testWindow(), true)
	if err != nil {
		t.Fatalf("CorrelateEnhanced returned error: %v", err)
	}

	if report.ControlPlane == nil || report.ControlPlane.Failed() {
		t.Fatalf("control plane slot missing or failed: %+v", report.ControlPlane)
	}
	cps := report.Summary.ControlPlane
	if cps == nil {
		t.Fatal("summary must include the control plane rollup")
	}
	if cps.Events != 3 {
		t.Errorf("events = %d, want 3", cps.Events)
	}
	if cps.ErrorMatches != 2 {
		t.Errorf("error_matches = %d, want 2 (failed + timeout)", cps.ErrorMatches)
	}
	if cps.RecentIssues != 2 {
		t.Errorf("recent_issues = %d, want 2 (within 30m)", cps.RecentIssues)
	}
}

func TestCorrelateEnhancedWithoutControlPlane(t *testing.T) {
	logs := &fakeLogSource{payload: logsWith([]string{"fine"})}

	// Not configured: slot stays nil even when requested.
	e := newTestEngine(logs, &fakeMetricSource{}, &fakeEventSource{}, nil)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}
	report, err := e.CorrelateEnhanced(context.Background(), sel, testWindow(), true)
	if err != nil {
		t.Fatalf("CorrelateEnhanced returned error: %v", err)
	}
	if report.ControlPlane != nil {
		t.Error("unconfigured control plane must leave the slot nil")
	}

	// Configured but not requested: same outcome.
	e = newTestEngine(logs, &fakeMetricSource{}, &fakeEventSource{}, &fakeControlPlaneSource{})
	report, err = e.CorrelateEnhanced(context.Background(), sel, testWindow(), false)
	if err != nil {
		t.Fatalf("CorrelateEnhanced returned error: %v", err)
	}
	if report.ControlPlane != nil {
		t.Error("include=false must leave the slot nil")
	}
	if report.Summary.ControlPlane != nil {
		t.Error("summary must omit the control plane rollup for a nil slot")
	}
}

func TestCorrelateEnhancedControlPlaneFailureIsSlotFailure(t *testing.T) {
	cp := &fakeControlPlaneSource{err: errors.New("AccessDenied")}
	logs := &fakeLogSource{payload: logsWith([]string{"fine"})}
	e := newTestEngine(logs, &fakeMetricSource{}, &fakeEventSource{}, cp)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}

	report, err := e.CorrelateEnhanced(context.Background(), sel, testWindow(), true)
	if err != nil {
		t.Fatalf("CorrelateEnhanced returned error: %v", err)
	}
	if report.ControlPlane == nil {
		t.Fatal("attempted control plane query must produce a slot")
	}
	if !report.ControlPlane.Failed() {
		t.Fatal("slot must carry the failure")
	}
	if report.Summary.ControlPlane != nil {
		t.Error("failed slot must contribute nothing to the summary")
	}
	if report.Logs.Failed() {
		t.Error("sibling slots must survive the control plane failure")
	}
}

func TestGetMetricsCapturesPerMetricErrors(t *testing.T) {
	ms := &fakeMetricSource{err: errors.New("datasource gone")}
	e := newTestEngine(&fakeLogSource{}, ms, &fakeEventSource{}, nil)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}

	payload, err := e.GetMetrics(context.Background(), sel, testWindow())
	if err != nil {
		t.Fatalf("per-metric failures must not fail the call: %v", err)
	}
	if len(payload.Metrics) != 4 {
		t.Fatalf("expected all 4 metric slots, got %d", len(payload.Metrics))
	}
	for _, name := range metricQueryNames {
		result, ok := payload.Metrics[name]
		if !ok {
			t.Fatalf("missing metric %q", name)
		}
		if result.Err == "" {
			t.Errorf("metric %q should carry its error", name)
		}
	}
}

func TestHealthCheckReflectsProbeFailures(t *testing.T) {
	ev := &fakeEventSource{pingErr: errors.New("connection refused")}
	e := newTestEngine(&fakeLogSource{}, &fakeMetricSource{}, ev, nil)

	report := e.HealthCheck(context.Background())
	if report.OverallHealthy {
		t.Error("a failing probe must clear the overall flag")
	}
	if report.Services["kubernetes"].Connected {
		t.Error("kubernetes should report disconnected")
	}
	if !strings.Contains(report.Services["kubernetes"].Details, "connection refused") {
		t.Errorf("probe error lost: %q", report.Services["kubernetes"].Details)
	}
	if !report.Services["loki"].Connected || !report.Services["prometheus"].Connected {
		t.Error("healthy services must report connected")
	}
	if _, present := report.Services["cloudwatch"]; present {
		t.Error("unconfigured control plane must not appear in the health report")
	}
}

type memProvider struct {
	entries map[string][]byte
}

func (m *memProvider) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return data, nil
}

func (m *memProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memProvider) Del(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memProvider) Close() error { return nil }

func TestCorrelateServesRepeatQueryFromCache(t *testing.T) {
	logs := &fakeLogSource{payload: logsWith([]string{"fine"})}
	e := New(Params{
		Logs:        logs,
		Metrics:     &fakeMetricSource{},
		Events:      &fakeEventSource{},
		Logger:      quietLogger(),
		GuardConfig: fastGuards,
		Reports:     cache.NewReportCache(&memProvider{entries: map[string][]byte{}}, time.Minute, quietLogger()),
	})
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}
	w := testWindow()

	first, err := e.Correlate(context.Background(), sel, w)
	if err != nil {
		t.Fatalf("Correlate returned error: %v", err)
	}
	if logs.calls != 1 {
		t.Fatalf("expected one backend query, got %d", logs.calls)
	}

	second, err := e.Correlate(context.Background(), sel, w)
	if err != nil {
		t.Fatalf("cached Correlate returned error: %v", err)
	}
	if logs.calls != 1 {
		t.Errorf("repeat query must be served from cache, got %d backend calls", logs.calls)
	}
	if second.Summary.LogEntries != first.Summary.LogEntries {
		t.Errorf("cached report differs: %+v vs %+v", second.Summary, first.Summary)
	}
}

func TestDiagnosticsRollsUpState(t *testing.T) {
	ev := &fakeEventSource{err: errors.New("boom")}
	e := newTestEngine(&fakeLogSource{}, &fakeMetricSource{}, ev, nil)
	sel := models.Selector{Namespace: "payments", PodName: "api-1"}

	if _, err := e.Correlate(context.Background(), sel, testWindow()); err != nil {
		t.Fatalf("Correlate returned error: %v", err)
	}

	diag := e.Diagnostics()
	if diag.ErrorSummary.TotalErrors == 0 {
		t.Error("events failure should be recorded in the aggregator")
	}
	if _, ok := diag.ServiceHealth["kubernetes"]; !ok {
		t.Error("health snapshot missing kubernetes")
	}
	if diag.CircuitBreakers["kubernetes"] == "" {
		t.Error("breaker state missing for kubernetes")
	}
	if _, ok := diag.CircuitBreakers["cloudwatch"]; ok {
		t.Error("unconfigured control plane must not report a breaker")
	}
}
