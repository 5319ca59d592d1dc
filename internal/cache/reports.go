package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// ReportCache stores finished correlation reports keyed by the selector and
// window that produced them. A short TTL keeps repeated debugging queries
// for the same pod from re-fanning out to every backend.
type ReportCache struct {
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger
}

// NewReportCache wraps a provider with report serialization. A nil provider
// degrades to the noop cache.
func NewReportCache(provider Provider, ttl time.Duration, logger *slog.Logger) *ReportCache {
	if provider == nil {
		provider = NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{provider: provider, ttl: ttl, logger: logger}
}

// Get returns a cached report for the selector and window, or false when no
// entry exists. Cache failures are logged and treated as misses so a broken
// cache never blocks a correlation.
func (c *ReportCache) Get(ctx context.Context, sel models.Selector, w timewindow.Window) (models.CorrelationReport, bool) {
	key := reportKey(sel, w)
	data, err := c.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return models.CorrelationReport{}, false
	}

	var report models.CorrelationReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logger.Warn("report cache entry corrupt, dropping", slog.String("key", key), slog.Any("error", err))
		_ = c.provider.Del(ctx, key)
		return models.CorrelationReport{}, false
	}
	return report, true
}

// Put stores a report. Failures are logged, never surfaced.
func (c *ReportCache) Put(ctx context.Context, sel models.Selector, w timewindow.Window, report models.CorrelationReport) {
	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("report cache marshal failed", slog.Any("error", err))
		return
	}
	key := reportKey(sel, w)
	if err := c.provider.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Close releases the underlying provider.
func (c *ReportCache) Close() error { return c.provider.Close() }

// reportKey hashes the query identity so label selectors with arbitrary
// characters still make safe cache keys. Window bounds are truncated to the
// second to match their wire precision.
func reportKey(sel models.Selector, w timewindow.Window) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d",
		sel.Namespace, sel.PodName, sel.LabelSelector,
		w.Start.Unix(), w.End.Unix())
	return "report:" + hex.EncodeToString(h.Sum(nil)[:16])
}
