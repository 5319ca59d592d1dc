// kubedebug is the command-line companion to the debug server: it invokes
// the server's tools and renders the reports as text tables.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubestack/kube-debugger/internal/client"
	"github.com/kubestack/kube-debugger/internal/models"
)

var (
	serverURL string
	timeRange string
	timeout   time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "kubedebug",
		Short:         "Correlate Kubernetes pod logs, metrics and events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("KUBE_DEBUGGER_SERVER", "http://localhost:8000"), "debug server base URL")
	root.PersistentFlags().StringVarP(&timeRange, "range", "r", "1h", "time range expression (e.g. 30m, 2h, 1d)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")

	root.AddCommand(
		newDebugCmd(),
		newLabelsCmd(),
		newAnalyzeCmd(),
		newTimelineCmd(),
		newHistoryCmd(),
		newHealthCmd(),
		newConfigCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(serverURL, timeout)
}

func newDebugCmd() *cobra.Command {
	var includeControlPlane bool
	cmd := &cobra.Command{
		Use:   "debug <namespace> <pod>",
		Short: "Correlate logs, metrics and events for one pod",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := models.Selector{Namespace: args[0], PodName: args[1]}
			c := newClient()

			var report models.CorrelationReport
			var err error
			if includeControlPlane {
				report, err = c.CorrelateEnhanced(cmd.Context(), sel, timeRange, true)
			} else {
				report, err = c.Correlate(cmd.Context(), sel, timeRange)
			}
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeControlPlane, "control-plane", false, "include EKS control-plane events")
	return cmd
}

func newLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels <namespace> <label-selector>",
		Short: "Correlate telemetry for pods matching a label selector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := models.Selector{Namespace: args[0], LabelSelector: args[1]}
			report, err := newClient().Correlate(cmd.Context(), sel, timeRange)
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var windowSize string
	cmd := &cobra.Command{
		Use:   "analyze <namespace> <pod>",
		Short: "Slice the time range into windows and detect anomalies and trends",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := models.Selector{Namespace: args[0], PodName: args[1]}
			analysis, err := newClient().AnalyzeTimeWindows(cmd.Context(), sel, timeRange, windowSize)
			if err != nil {
				return err
			}
			renderAnalysis(cmd.OutOrStdout(), analysis)
			return nil
		},
	}
	cmd.Flags().StringVarP(&windowSize, "window", "w", "10m", "sub-window size expression")
	return cmd
}

func newTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <namespace> [pod]",
		Short: "Show cluster events for a namespace in chronological order",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := models.Selector{Namespace: args[0]}
			if len(args) == 2 {
				sel.PodName = args[1]
			}
			events, err := newClient().ClusterEvents(cmd.Context(), sel, timeRange)
			if err != nil {
				return err
			}
			renderEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the server's recent backend error history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := newClient().Diagnostics(cmd.Context())
			if err != nil {
				return err
			}
			return renderErrorHistory(cmd.OutOrStdout(), raw)
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every telemetry backend through the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := newClient().HealthCheck(cmd.Context())
			if err != nil {
				return err
			}
			renderHealth(cmd.OutOrStdout(), report)
			if !report.OverallHealthy {
				return fmt.Errorf("one or more backends are unhealthy")
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the server's effective configuration and tool manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			tools, err := c.Tools(cmd.Context())
			if err != nil {
				return err
			}
			raw, err := c.Diagnostics(cmd.Context())
			if err != nil {
				return err
			}
			return renderConfig(cmd.OutOrStdout(), serverURL, tools, raw)
		},
	}
}
