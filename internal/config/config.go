package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the debugger service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Grafana    GrafanaConfig    `yaml:"grafana"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	AWS        AWSConfig        `yaml:"aws"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Logging    LoggingConfig    `yaml:"logging"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig controls the tool server and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// GrafanaConfig configures access to the Grafana-proxied Loki and Prometheus
// datasources.
type GrafanaConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"apiKey"`
	LokiPath       string        `yaml:"lokiPath"`
	PrometheusPath string        `yaml:"prometheusPath"`
	QueryLimit     int           `yaml:"queryLimit"`
	MetricsStep    time.Duration `yaml:"metricsStep"`
	Timeout        time.Duration `yaml:"timeout"`
}

// KubernetesConfig configures the cluster-event source.
type KubernetesConfig struct {
	KubeconfigPath   string `yaml:"kubeconfigPath"`
	DefaultNamespace string `yaml:"defaultNamespace"`
}

// AWSConfig configures the control-plane event source. ClusterName empty
// disables the source entirely.
type AWSConfig struct {
	Region      string `yaml:"region"`
	Profile     string `yaml:"profile"`
	ClusterName string `yaml:"clusterName"`
}

// ResilienceConfig sizes the wrappers shared by all backend guards.
type ResilienceConfig struct {
	QueryTimeout     time.Duration `yaml:"queryTimeout"`
	MaxRetryAttempts int           `yaml:"maxRetryAttempts"`
	RetryMinWait     time.Duration `yaml:"retryMinWait"`
	RetryMaxWait     time.Duration `yaml:"retryMaxWait"`
	FailureThreshold int           `yaml:"failureThreshold"`
	RecoveryTimeout  time.Duration `yaml:"recoveryTimeout"`
	MaxRequests      int           `yaml:"maxRequests"`
	RateWindow       time.Duration `yaml:"rateWindow"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of correlation reports.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	ReportTTL    time.Duration `yaml:"reportTTL"`
}

// Load initialises Config from a YAML file and environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("KUBE_DEBUGGER_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Validate reports configuration issues that prevent a useful boot.
func (c *Config) Validate() []string {
	var issues []string
	if c.Grafana.URL == "" {
		issues = append(issues, "grafana.url is required (GRAFANA_URL)")
	} else if !strings.HasPrefix(c.Grafana.URL, "http://") && !strings.HasPrefix(c.Grafana.URL, "https://") {
		issues = append(issues, "grafana.url must start with http:// or https://")
	}
	if c.Grafana.APIKey == "" {
		issues = append(issues, "grafana.apiKey is required (GRAFANA_API_KEY)")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	return issues
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8000",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Grafana: GrafanaConfig{
			LokiPath:       "/loki/api/v1",
			PrometheusPath: "/api/v1",
			QueryLimit:     1000,
			MetricsStep:    30 * time.Second,
			Timeout:        30 * time.Second,
		},
		Kubernetes: KubernetesConfig{DefaultNamespace: "default"},
		AWS:        AWSConfig{Region: "us-east-1"},
		Resilience: ResilienceConfig{
			QueryTimeout:     30 * time.Second,
			MaxRetryAttempts: 3,
			RetryMinWait:     time.Second,
			RetryMaxWait:     time.Minute,
			FailureThreshold: 5,
			RecoveryTimeout:  time.Minute,
			MaxRequests:      100,
			RateWindow:       time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			ReportTTL:    5 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KUBE_DEBUGGER_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("GRAFANA_URL"); v != "" {
		cfg.Grafana.URL = v
	}
	if v := os.Getenv("GRAFANA_API_KEY"); v != "" {
		cfg.Grafana.APIKey = v
	}
	// Older deployments exported GRAFANA_TOKEN instead of GRAFANA_API_KEY.
	if v := os.Getenv("GRAFANA_TOKEN"); v != "" && cfg.Grafana.APIKey == "" {
		cfg.Grafana.APIKey = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_LOKI_PATH"); v != "" {
		cfg.Grafana.LokiPath = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_PROMETHEUS_PATH"); v != "" {
		cfg.Grafana.PrometheusPath = v
	}
	if v := os.Getenv("KUBECONFIG"); v != "" && cfg.Kubernetes.KubeconfigPath == "" {
		cfg.Kubernetes.KubeconfigPath = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_NAMESPACE"); v != "" {
		cfg.Kubernetes.DefaultNamespace = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		cfg.AWS.Profile = v
	}
	if v := os.Getenv("EKS_CLUSTER_NAME"); v != "" {
		cfg.AWS.ClusterName = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Resilience.QueryTimeout = d
		}
	}
	if v := os.Getenv("KUBE_DEBUGGER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.MaxRetryAttempts = n
		}
	}
	if v := os.Getenv("KUBE_DEBUGGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("KUBE_DEBUGGER_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("KUBE_DEBUGGER_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("KUBE_DEBUGGER_CACHE_REPORT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReportTTL = d
		}
	}
}
