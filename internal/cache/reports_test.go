package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

type memoryProvider struct {
	entries map[string][]byte
	failing bool
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{entries: map[string][]byte{}}
}

func (m *memoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	if m.failing {
		return nil, errors.New("connection refused")
	}
	data, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (m *memoryProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.failing {
		return errors.New("connection refused")
	}
	m.entries[key] = value
	return nil
}

func (m *memoryProvider) Del(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memoryProvider) Close() error { return nil }

func sampleWindow() timewindow.Window {
	return timewindow.Window{
		Start: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReportCacheRoundTrip(t *testing.T) {
	provider := newMemoryProvider()
	c := NewReportCache(provider, time.Minute, nil)

	sel := models.Selector{Namespace: "payments", PodName: "api-1"}
	w := sampleWindow()
	report := models.CorrelationReport{Selector: sel, Window: w}
	report.Summary.LogEntries = 42

	c.Put(context.Background(), sel, w, report)

	got, ok := c.Get(context.Background(), sel, w)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Summary.LogEntries != 42 {
		t.Errorf("summary not preserved: %+v", got.Summary)
	}
}

func TestReportCacheMissForDifferentWindow(t *testing.T) {
	provider := newMemoryProvider()
	c := NewReportCache(provider, time.Minute, nil)

	sel := models.Selector{Namespace: "payments", PodName: "api-1"}
	w := sampleWindow()
	c.Put(context.Background(), sel, w, models.CorrelationReport{Selector: sel, Window: w})

	other := timewindow.Window{Start: w.Start.Add(-time.Hour), End: w.End}
	if _, ok := c.Get(context.Background(), sel, other); ok {
		t.Fatal("different window must not share a cache entry")
	}
}

func TestReportCacheProviderFailureIsMiss(t *testing.T) {
	provider := newMemoryProvider()
	provider.failing = true
	c := NewReportCache(provider, time.Minute, nil)

	sel := models.Selector{Namespace: "payments", PodName: "api-1"}
	if _, ok := c.Get(context.Background(), sel, sampleWindow()); ok {
		t.Fatal("provider failure must degrade to a miss")
	}
	// Put must not panic or surface the failure either.
	c.Put(context.Background(), sel, sampleWindow(), models.CorrelationReport{})
}

func TestReportCacheDropsCorruptEntry(t *testing.T) {
	provider := newMemoryProvider()
	c := NewReportCache(provider, time.Minute, nil)

	sel := models.Selector{Namespace: "payments", PodName: "api-1"}
	w := sampleWindow()
	provider.entries[reportKey(sel, w)] = []byte("{not json")

	if _, ok := c.Get(context.Background(), sel, w); ok {
		t.Fatal("corrupt entry must be a miss")
	}
	if _, still := provider.entries[reportKey(sel, w)]; still {
		t.Error("corrupt entry should be deleted on read")
	}
}

func TestNewReportCacheNilProvider(t *testing.T) {
	c := NewReportCache(nil, 0, nil)
	sel := models.Selector{Namespace: "default", PodName: "p"}
	if _, ok := c.Get(context.Background(), sel, sampleWindow()); ok {
		t.Fatal("noop provider must always miss")
	}
}
