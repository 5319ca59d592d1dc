package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kubestack/kube-debugger/internal/client"
	"github.com/kubestack/kube-debugger/internal/models"
)

func renderReport(w io.Writer, report models.CorrelationReport) {
	fmt.Fprintf(w, "Correlation for %s/%s (%s .. %s)\n\n",
		report.Selector.Namespace, target(report.Selector),
		report.Window.Start.Format(time.RFC3339), report.Window.End.Format(time.RFC3339))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tDETAILS")
	fmt.Fprintf(tw, "logs\t%s\t%s\n", slotStatus(report.Logs.Failed(), report.Logs.Err),
		fmt.Sprintf("%d entries, %d errors", report.Summary.LogEntries, report.Summary.ErrorLogs))
	fmt.Fprintf(tw, "metrics\t%s\t%s\n", slotStatus(report.Metrics.Failed(), report.Metrics.Err),
		metricsDetail(report.Metrics))
	fmt.Fprintf(tw, "events\t%s\t%s\n", slotStatus(report.Events.Failed(), report.Events.Err),
		fmt.Sprintf("%d warning, %d error", report.Summary.WarningEvents, report.Summary.ErrorEvents))
	if report.ControlPlane != nil {
		detail := ""
		if cp := report.Summary.ControlPlane; cp != nil {
			detail = fmt.Sprintf("%d events, %d error matches, %d recent", cp.Events, cp.ErrorMatches, cp.RecentIssues)
		}
		fmt.Fprintf(tw, "control-plane\t%s\t%s\n",
			slotStatus(report.ControlPlane.Failed(), report.ControlPlane.Err), detail)
	}
	tw.Flush()
}

func target(sel models.Selector) string {
	if sel.PodName != "" {
		return sel.PodName
	}
	if sel.LabelSelector != "" {
		return "{" + sel.LabelSelector + "}"
	}
	return "*"
}

func slotStatus(failed bool, msg string) string {
	if failed {
		return "FAILED: " + msg
	}
	return "ok"
}

func metricsDetail(res models.Result[models.MetricsPayload]) string {
	if res.Failed() {
		return ""
	}
	names := make([]string, 0, len(res.Data.Metrics))
	for name := range res.Data.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		m := res.Data.Metrics[name]
		if m.Err != "" {
			parts = append(parts, name+": failed")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d series", name, len(m.Series)))
	}
	return strings.Join(parts, ", ")
}

func renderAnalysis(w io.Writer, analysis models.TimeAnalysis) {
	fmt.Fprintf(w, "Time analysis for %s/%s: %s in %s windows (%d total)\n\n",
		analysis.Namespace, analysis.PodName, analysis.TotalRange, analysis.WindowSize, analysis.TotalWindows)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tLOGS\tERRORS\tMETRICS\tANOMALIES")
	for _, win := range analysis.Windows {
		label := fmt.Sprintf("%s..%s",
			win.Window.Start.Format("15:04"), win.Window.End.Format("15:04"))
		if win.Err != "" {
			fmt.Fprintf(tw, "%s\t-\t-\t-\tfailed: %s\n", label, win.Err)
			continue
		}
		metricsMark := "no"
		if win.MetricsAvailable {
			metricsMark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			label, win.LogCount, win.ErrorCount, metricsMark, strings.Join(win.Anomalies, "; "))
	}
	tw.Flush()

	fmt.Fprintln(w)
	if analysis.Trends.Err != "" {
		fmt.Fprintf(w, "Trends: %s\n", analysis.Trends.Err)
		return
	}
	if v := analysis.Trends.LogVolume; v != nil {
		fmt.Fprintf(w, "Log volume: %s (avg %.1f, peak %d, min %d)\n",
			v.Direction, v.Average, v.Peak, v.Minimum)
	}
	if e := analysis.Trends.ErrorPattern; e != nil {
		fmt.Fprintf(w, "Errors: %d total, peak %d in one window, %d windows affected\n",
			e.TotalErrors, e.PeakErrors, e.ErrorWindows)
	}
}

func renderEvents(w io.Writer, payload models.EventsPayload) {
	if len(payload.Events) == 0 {
		fmt.Fprintf(w, "No events in namespace %s for the requested range.\n", payload.Namespace)
		return
	}

	// Server returns newest first; a timeline reads oldest first.
	events := append([]models.ClusterEvent(nil), payload.Events...)
	sort.Slice(events, func(i, j int) bool {
		return events[i].FirstTimestamp.Before(events[j].FirstTimestamp)
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tREASON\tOBJECT\tMESSAGE")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\n",
			ev.FirstTimestamp.Format("15:04:05"), ev.Type, ev.Reason,
			ev.Object.Kind, ev.Object.Name, ev.Message)
	}
	tw.Flush()
}

func renderHealth(w io.Writer, report models.HealthReport) {
	names := make([]string, 0, len(report.Services))
	for name := range report.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATUS\tDETAILS")
	for _, name := range names {
		svc := report.Services[name]
		status := "connected"
		if !svc.Connected {
			status = "DOWN"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, status, svc.Details)
	}
	tw.Flush()

	overall := "healthy"
	if !report.OverallHealthy {
		overall = "unhealthy"
	}
	fmt.Fprintf(w, "\nOverall: %s (checked %s)\n", overall, report.Timestamp.Format(time.RFC3339))
}

// errorHistory is the slice of the diagnostics document the history command
// renders.
type errorHistory struct {
	ErrorSummary struct {
		TotalErrors          int `json:"total_errors"`
		OperationsWithErrors int `json:"operations_with_errors"`
		Operations           map[string]struct {
			Count       int            `json:"count"`
			RecentCount int            `json:"recent_count"`
			ErrorTypes  map[string]int `json:"error_types"`
		} `json:"operations"`
	} `json:"error_summary"`
	CircuitBreakers map[string]string `json:"circuit_breakers"`
}

func renderErrorHistory(w io.Writer, raw json.RawMessage) error {
	var hist errorHistory
	if err := json.Unmarshal(raw, &hist); err != nil {
		return fmt.Errorf("decode diagnostics: %w", err)
	}

	if hist.ErrorSummary.TotalErrors == 0 {
		fmt.Fprintln(w, "No backend errors recorded.")
	} else {
		fmt.Fprintf(w, "%d errors across %d operations\n\n",
			hist.ErrorSummary.TotalErrors, hist.ErrorSummary.OperationsWithErrors)

		ops := make([]string, 0, len(hist.ErrorSummary.Operations))
		for op := range hist.ErrorSummary.Operations {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OPERATION\tTOTAL\tLAST HOUR\tKINDS")
		for _, op := range ops {
			summary := hist.ErrorSummary.Operations[op]
			kinds := make([]string, 0, len(summary.ErrorTypes))
			for kind, count := range summary.ErrorTypes {
				kinds = append(kinds, fmt.Sprintf("%s=%d", kind, count))
			}
			sort.Strings(kinds)
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", op, summary.Count, summary.RecentCount, strings.Join(kinds, " "))
		}
		tw.Flush()
	}

	if len(hist.CircuitBreakers) > 0 {
		fmt.Fprintln(w)
		backends := make([]string, 0, len(hist.CircuitBreakers))
		for name := range hist.CircuitBreakers {
			backends = append(backends, name)
		}
		sort.Strings(backends)
		for _, name := range backends {
			fmt.Fprintf(w, "breaker %s: %s\n", name, hist.CircuitBreakers[name])
		}
	}
	return nil
}

func renderConfig(w io.Writer, server string, tools []client.Tool, raw json.RawMessage) error {
	fmt.Fprintf(w, "Server: %s\n\n", server)

	var diag struct {
		Config map[string]string `json:"configuration"`
	}
	if err := json.Unmarshal(raw, &diag); err != nil {
		return fmt.Errorf("decode diagnostics: %w", err)
	}
	if len(diag.Config) > 0 {
		keys := make([]string, 0, len(diag.Config))
		for k := range diag.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%s\n", k, diag.Config[k])
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Available tools:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, tool := range tools {
		fmt.Fprintf(tw, "  %s\t%s\n", tool.Name, tool.Description)
	}
	tw.Flush()
	return nil
}
