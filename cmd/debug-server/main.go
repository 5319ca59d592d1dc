package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubestack/kube-debugger/internal/backends"
	"github.com/kubestack/kube-debugger/internal/cache"
	"github.com/kubestack/kube-debugger/internal/config"
	"github.com/kubestack/kube-debugger/internal/engine"
	"github.com/kubestack/kube-debugger/internal/metrics"
	"github.com/kubestack/kube-debugger/internal/resilience"
	"github.com/kubestack/kube-debugger/internal/server"
	"github.com/kubestack/kube-debugger/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting kube-debugger", slog.String("address", cfg.Server.Address))

	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			logger.Error("invalid configuration", slog.String("issue", issue))
		}
		os.Exit(1)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	reports := cache.NewReportCache(cacheProvider, cfg.Cache.ReportTTL, logger)
	defer reports.Close()

	lokiClient := backends.NewLokiClient(
		cfg.Grafana.URL, cfg.Grafana.LokiPath, cfg.Grafana.APIKey,
		cfg.Grafana.QueryLimit, cfg.Grafana.Timeout,
	)
	promClient := backends.NewPrometheusClient(
		cfg.Grafana.URL, cfg.Grafana.PrometheusPath, cfg.Grafana.APIKey,
		cfg.Grafana.MetricsStep, cfg.Grafana.Timeout,
	)
	eventsClient, err := backends.NewEventsClient(cfg.Kubernetes.KubeconfigPath)
	if err != nil {
		logger.Error("failed to build kubernetes client", slog.Any("error", err))
		os.Exit(1)
	}

	var controlPlane backends.ControlPlaneSource
	if cfg.AWS.ClusterName != "" {
		cwClient, err := backends.NewCloudWatchClient(
			context.Background(), cfg.AWS.Region, cfg.AWS.Profile, cfg.AWS.ClusterName,
		)
		if err != nil {
			logger.Warn("control plane source unavailable", slog.Any("error", err))
		} else {
			controlPlane = cwClient
		}
	}

	eng := engine.New(engine.Params{
		Logs:         lokiClient,
		Metrics:      promClient,
		Events:       eventsClient,
		ControlPlane: controlPlane,
		Reports:      reports,
		Logger:       logger,
		GuardConfig:  guardConfigFrom(cfg.Resilience),
		ConfigEcho: map[string]string{
			"grafana_url":       cfg.Grafana.URL,
			"default_namespace": cfg.Kubernetes.DefaultNamespace,
			"aws_region":        cfg.AWS.Region,
			"eks_cluster":       cfg.AWS.ClusterName,
			"cache_enabled":     boolString(cfg.Cache.Enabled),
		},
	})

	srv, err := server.NewServer(cfg.Server, eng, logger)
	if err != nil {
		logger.Error("failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := srv.Start(); serveErr != nil {
			logger.Error("server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("kube-debugger stopped")
}

func guardConfigFrom(rc config.ResilienceConfig) func(string) resilience.GuardConfig {
	return func(name string) resilience.GuardConfig {
		cfg := resilience.DefaultGuardConfig(name)
		if rc.FailureThreshold > 0 {
			cfg.FailureThreshold = rc.FailureThreshold
		}
		if rc.RecoveryTimeout > 0 {
			cfg.RecoveryTimeout = rc.RecoveryTimeout
		}
		if rc.MaxRequests > 0 {
			cfg.MaxRequests = rc.MaxRequests
		}
		if rc.RateWindow > 0 {
			cfg.RateWindow = rc.RateWindow
		}
		if rc.MaxRetryAttempts > 0 {
			cfg.Retry.MaxAttempts = rc.MaxRetryAttempts
		}
		if rc.RetryMinWait > 0 {
			cfg.Retry.MinWait = rc.RetryMinWait
		}
		if rc.RetryMaxWait > 0 {
			cfg.Retry.MaxWait = rc.RetryMaxWait
		}
		if rc.QueryTimeout > 0 {
			cfg.Timeout = rc.QueryTimeout
		}
		return cfg
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
