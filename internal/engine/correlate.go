package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kubestack/kube-debugger/internal/metrics"
	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// controlPlanePatterns are the fixed substrings flagged in control-plane
// event messages.
var controlPlanePatterns = []string{"error", "failed", "exception", "timeout"}

const recentIssueWindow = 30 * time.Minute

// slot runs fn and folds its outcome, including panics, into a Result. A
// panicking backend query must never take down the sibling queries of the
// same correlation.
func slot[T any](ctx context.Context, name string, e *Engine, fn func(context.Context) (T, error)) (res models.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s query panicked: %v", name, r)
			e.logger.Error("backend query panicked",
				"slot", name,
				"panic", r)
			e.aggregator.Record(name, err, nil)
			res = models.Fail[T](err)
		}
	}()

	data, err := fn(ctx)
	if err != nil {
		return models.Fail[T](err)
	}
	return models.Ok(data)
}

// Correlate issues the log, metric and cluster-event queries concurrently
// and merges them into one report. Slots fail independently; the report is
// always returned. Only a contract violation in the selector is an error.
func (e *Engine) Correlate(ctx context.Context, sel models.Selector, w timewindow.Window) (models.CorrelationReport, error) {
	if err := sel.Validate(); err != nil {
		return models.CorrelationReport{}, err
	}

	if e.reports != nil {
		if cached, ok := e.reports.Get(ctx, sel, w); ok {
			return cached, nil
		}
	}

	start := time.Now()
	report := e.fanOut(ctx, sel, w, false)
	report.Summary = buildSummary(report, time.Now())
	metrics.ObserveCorrelation(time.Since(start), correlationOutcome(report))

	if e.reports != nil {
		e.reports.Put(ctx, sel, w, report)
	}
	return report, nil
}

// CorrelateEnhanced adds a fourth concurrent control-plane slot when
// requested and configured. A disabled or unconfigured control plane leaves
// the slot nil, distinguishable from a failed query. Enhanced reports are
// not cached; the extra slot would alias the plain report's cache key.
func (e *Engine) CorrelateEnhanced(ctx context.Context, sel models.Selector, w timewindow.Window, includeControlPlane bool) (models.CorrelationReport, error) {
	if err := sel.Validate(); err != nil {
		return models.CorrelationReport{}, err
	}

	start := time.Now()
	withCP := includeControlPlane && e.controlPlane != nil
	report := e.fanOut(ctx, sel, w, withCP)
	report.Summary = buildSummary(report, time.Now())
	metrics.ObserveCorrelation(time.Since(start), correlationOutcome(report))
	return report, nil
}

// fanOut launches every slot query before awaiting any of them, then joins
// all. Each goroutine writes a distinct report field; the WaitGroup provides
// the ordering for the final read.
func (e *Engine) fanOut(ctx context.Context, sel models.Selector, w timewindow.Window, withControlPlane bool) models.CorrelationReport {
	report := models.CorrelationReport{Selector: sel, Window: w}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		report.Logs = slot(ctx, serviceLoki, e, func(ctx context.Context) (models.LogsPayload, error) {
			return e.GetLogs(ctx, sel, w)
		})
	}()
	go func() {
		defer wg.Done()
		report.Metrics = slot(ctx, serviceProm, e, func(ctx context.Context) (models.MetricsPayload, error) {
			return e.GetMetrics(ctx, sel, w)
		})
	}()
	go func() {
		defer wg.Done()
		report.Events = slot(ctx, serviceKubernetes, e, func(ctx context.Context) (models.EventsPayload, error) {
			return e.GetClusterEvents(ctx, sel, w)
		})
	}()

	if withControlPlane {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := slot(ctx, serviceCloudWatch, e, func(ctx context.Context) (models.ControlPlanePayload, error) {
				return e.GetControlPlaneEvents(ctx, w, "")
			})
			report.ControlPlane = &res
		}()
	}

	wg.Wait()
	return report
}

// buildSummary derives counts purely from the slots that succeeded.
func buildSummary(report models.CorrelationReport, now time.Time) models.Summary {
	var s models.Summary

	if !report.Logs.Failed() {
		s.LogEntries = report.Logs.Data.EntryCount()
		for _, stream := range report.Logs.Data.Streams {
			for _, rec := range stream.Records {
				if isErrorLine(rec.Line) {
					s.ErrorLogs++
				}
			}
		}
	}

	if !report.Events.Failed() {
		for _, ev := range report.Events.Data.Events {
			switch ev.Type {
			case "Warning":
				s.WarningEvents++
			case "Error":
				s.ErrorEvents++
			}
		}
	}

	if report.ControlPlane != nil && !report.ControlPlane.Failed() {
		cp := &models.ControlPlaneSummary{Events: report.ControlPlane.Data.Total}
		cutoff := now.Add(-recentIssueWindow)
		for _, ev := range report.ControlPlane.Data.Events {
			if matchesControlPlanePattern(ev.Message) {
				cp.ErrorMatches++
			}
			if ev.Timestamp.After(cutoff) {
				cp.RecentIssues++
			}
		}
		s.ControlPlane = cp
	}

	return s
}

// isErrorLine reports whether a log line counts toward error_logs.
func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "error") || strings.Contains(lower, "exception")
}

func matchesControlPlanePattern(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range controlPlanePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func correlationOutcome(report models.CorrelationReport) string {
	failed := 0
	total := 3
	if report.Logs.Failed() {
		failed++
	}
	if report.Metrics.Failed() {
		failed++
	}
	if report.Events.Failed() {
		failed++
	}
	if report.ControlPlane != nil {
		total++
		if report.ControlPlane.Failed() {
			failed++
		}
	}
	switch failed {
	case 0:
		return metrics.OutcomeSuccess
	case total:
		return metrics.OutcomeError
	default:
		return metrics.OutcomePartial
	}
}
