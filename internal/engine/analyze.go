package engine

import (
	"context"
	"fmt"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
)

// Anomaly thresholds are fixed constants, not configuration.
const (
	anomalyErrorRate  = 0.10
	anomalyHighVolume = 1000
)

const (
	anomalyHighErrorRate = "high error rate"
	anomalyNoLogs        = "no logs detected"
	anomalyLogVolume     = "unusually high log volume"
)

// Trend direction cutoffs: second-half volume beyond these multiples of the
// first half flips the direction off "stable".
const (
	trendIncreaseFactor = 1.2
	trendDecreaseFactor = 0.8
	trendMinWindows     = 3
)

// AnalyzeTimeWindows slices rangeExpr into windowExpr-sized sub-windows and
// runs a reduced correlation (logs and metrics only) per window. A failing
// window is recorded with its error and does not abort the remaining ones.
func (e *Engine) AnalyzeTimeWindows(ctx context.Context, sel models.Selector, rangeExpr, windowExpr string) (models.TimeAnalysis, error) {
	if err := sel.Validate(); err != nil {
		return models.TimeAnalysis{}, err
	}

	total := timewindow.Parse(rangeExpr)
	sub := timewindow.ParseDuration(windowExpr)
	windows := timewindow.Slice(total, sub)

	analyses := make([]models.WindowAnalysis, 0, len(windows))
	for _, w := range windows {
		analyses = append(analyses, e.analyzeWindow(ctx, sel, w))
	}

	return models.TimeAnalysis{
		Namespace:    sel.Namespace,
		PodName:      sel.PodName,
		TotalRange:   rangeExpr,
		WindowSize:   windowExpr,
		TotalWindows: len(windows),
		Windows:      analyses,
		Trends:       buildTrends(analyses),
		Window:       total,
	}, nil
}

// analyzeWindow performs the reduced per-window correlate. Panics and errors
// are folded into the analysis record.
func (e *Engine) analyzeWindow(ctx context.Context, sel models.Selector, w timewindow.Window) (out models.WindowAnalysis) {
	out = models.WindowAnalysis{Window: w}
	defer func() {
		if r := recover(); r != nil {
			out = models.WindowAnalysis{Window: w, Err: fmt.Sprintf("window analysis panicked: %v", r)}
		}
	}()

	logs, err := e.GetLogs(ctx, sel, w)
	if err != nil {
		out.Err = err.Error()
		return out
	}

	out.LogCount = logs.EntryCount()
	for _, stream := range logs.Streams {
		for _, rec := range stream.Records {
			if isErrorLine(rec.Line) {
				out.ErrorCount++
			}
		}
	}

	if metricsPayload, err := e.GetMetrics(ctx, sel, w); err == nil {
		for _, result := range metricsPayload.Metrics {
			if result.Err == "" {
				out.MetricsAvailable = true
				break
			}
		}
	}

	out.Anomalies = detectAnomalies(out.LogCount, out.ErrorCount)
	return out
}

func detectAnomalies(logCount, errorCount int) []string {
	var anomalies []string

	denominator := logCount
	if denominator < 1 {
		denominator = 1
	}
	if float64(errorCount)/float64(denominator) > anomalyErrorRate {
		anomalies = append(anomalies, anomalyHighErrorRate)
	}
	if logCount == 0 {
		anomalies = append(anomalies, anomalyNoLogs)
	}
	if logCount > anomalyHighVolume {
		anomalies = append(anomalies, anomalyLogVolume)
	}
	return anomalies
}

// buildTrends aggregates across windows that analyzed successfully. Zero
// valid windows yields an explicit no-data result.
func buildTrends(analyses []models.WindowAnalysis) models.TrendReport {
	var counts []int
	var errCounts []int
	for _, a := range analyses {
		if a.Err != "" {
			continue
		}
		counts = append(counts, a.LogCount)
		errCounts = append(errCounts, a.ErrorCount)
	}

	if len(counts) == 0 {
		return models.TrendReport{Err: "no windows analyzed successfully"}
	}

	volume := models.VolumeTrend{Peak: counts[0], Minimum: counts[0], Direction: "stable"}
	sum := 0
	for _, c := range counts {
		sum += c
		if c > volume.Peak {
			volume.Peak = c
		}
		if c < volume.Minimum {
			volume.Minimum = c
		}
	}
	volume.Average = float64(sum) / float64(len(counts))
	volume.Direction = trendDirection(counts)

	errTrend := models.ErrorTrend{}
	for _, c := range errCounts {
		errTrend.TotalErrors += c
		if c > errTrend.PeakErrors {
			errTrend.PeakErrors = c
		}
		if c > 0 {
			errTrend.ErrorWindows++
		}
	}

	return models.TrendReport{LogVolume: &volume, ErrorPattern: &errTrend}
}

// trendDirection compares the log volume of the second half of the windows
// against the first. Fewer than three windows is always "stable".
func trendDirection(counts []int) string {
	if len(counts) < trendMinWindows {
		return "stable"
	}

	mid := len(counts) / 2
	first, second := 0, 0
	for _, c := range counts[:mid] {
		first += c
	}
	for _, c := range counts[mid:] {
		second += c
	}

	switch {
	case float64(second) > trendIncreaseFactor*float64(first):
		return "increasing"
	case float64(second) < trendDecreaseFactor*float64(first):
		return "decreasing"
	default:
		return "stable"
	}
}
