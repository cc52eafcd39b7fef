package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Exposureflow ExposureflowConfig `yaml:"exposureflow"`
	Logging      LoggingConfig      `yaml:"logging"`
	Provider     ProviderConfig     `yaml:"provider"`
	Refresh      RefreshConfig      `yaml:"refresh"`
	Chain        ChainConfig        `yaml:"chain"`
	Feed         FeedConfig         `yaml:"feed"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Dashboard    DashboardConfig    `yaml:"dashboard"`
}

type ExposureflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

type ProviderConfig struct {
	Backend string        `yaml:"backend"`
	Ibgw    IbgwConfig    `yaml:"ibgw"`
	Binance BinanceConfig `yaml:"binance"`
	Paper   PaperConfig   `yaml:"paper"`
}

type IbgwConfig struct {
	BaseURL        string               `yaml:"base_url"`
	AccountID      string               `yaml:"account_id"`
	VerifyTLS      bool                 `yaml:"verify_tls"`
	TimeoutMs      int                  `yaml:"timeout_ms"`
	Stream         StreamConfig         `yaml:"stream"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns      int `yaml:"max_idle_conns"`
	MaxConnsPerHost   int `yaml:"max_conns_per_host"`
	IdleConnTimeoutMs int `yaml:"idle_conn_timeout_ms"`
}

type BinanceConfig struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	QuoteAsset string `yaml:"quote_asset"`
}

type PaperConfig struct {
	File string `yaml:"file"`
}

type RefreshConfig struct {
	IntervalMs          int             `yaml:"interval_ms"`
	KeepaliveIntervalMs int             `yaml:"keepalive_interval_ms"`
	QuoteRateLimit      RateLimitConfig `yaml:"quote_rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ChainConfig struct {
	MaxStrikes int `yaml:"max_strikes"`
}

type FeedConfig struct {
	UpdateBuffer int `yaml:"update_buffer"`
}

type MetricsConfig struct {
	ChannelSize bool             `yaml:"channel_size"`
	PassStats   bool             `yaml:"pass_stats"`
	CloudWatch  CloudWatchConfig `yaml:"cloudwatch"`
	Prometheus  PrometheusConfig `yaml:"prometheus"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type DashboardConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Address           string `yaml:"address"`
	RefreshIntervalMs int    `yaml:"refresh_interval_ms"`
	LogHistory        int    `yaml:"log_history"`
	MetricsHistory    int    `yaml:"metrics_history"`
}

// Backend identifiers accepted by provider.backend.
const (
	BackendIbgw    = "ibgw"
	BackendBinance = "binance"
	BackendPaper   = "paper"
)

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{
			ChannelSize: true,
			PassStats:   true,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Backend == "" {
		cfg.Provider.Backend = BackendPaper
	}
	if cfg.Provider.Ibgw.BaseURL == "" {
		cfg.Provider.Ibgw.BaseURL = "https://localhost:5000/v1/api"
	}
	if cfg.Provider.Ibgw.TimeoutMs <= 0 {
		cfg.Provider.Ibgw.TimeoutMs = 10000
	}
	if cfg.Provider.Binance.QuoteAsset == "" {
		cfg.Provider.Binance.QuoteAsset = "USDT"
	}
	if cfg.Refresh.IntervalMs <= 0 {
		cfg.Refresh.IntervalMs = 30000
	}
	if cfg.Refresh.KeepaliveIntervalMs <= 0 {
		cfg.Refresh.KeepaliveIntervalMs = 60000
	}
	if cfg.Refresh.QuoteRateLimit.RequestsPerSecond <= 0 {
		// one request per 200ms, gateway friendly
		cfg.Refresh.QuoteRateLimit.RequestsPerSecond = 5
	}
	if cfg.Refresh.QuoteRateLimit.BurstSize <= 0 {
		cfg.Refresh.QuoteRateLimit.BurstSize = 1
	}
	if cfg.Chain.MaxStrikes <= 0 {
		cfg.Chain.MaxStrikes = 10
	}
	if cfg.Feed.UpdateBuffer <= 0 {
		cfg.Feed.UpdateBuffer = 1024
	}
	if cfg.Metrics.CloudWatch.Namespace == "" {
		cfg.Metrics.CloudWatch.Namespace = "ExposureFlow"
	}
	if cfg.Metrics.Prometheus.Address == "" {
		cfg.Metrics.Prometheus.Address = "0.0.0.0:2112"
	}
	if cfg.Dashboard.Address == "" {
		cfg.Dashboard.Address = "0.0.0.0:8750"
	}
	if cfg.Dashboard.RefreshIntervalMs <= 0 {
		cfg.Dashboard.RefreshIntervalMs = 5000
	}
	if cfg.Dashboard.LogHistory <= 0 {
		cfg.Dashboard.LogHistory = 200
	}
	if cfg.Dashboard.MetricsHistory <= 0 {
		cfg.Dashboard.MetricsHistory = 200
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IB_GATEWAY_URL"); v != "" {
		cfg.Provider.Ibgw.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("IB_ACCOUNT_ID"); v != "" {
		cfg.Provider.Ibgw.AccountID = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Provider.Binance.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Provider.Binance.APISecret = strings.TrimSpace(v)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Exposureflow.Name == "" {
		return fmt.Errorf("exposureflow.name is required")
	}

	if cfg.Exposureflow.Version == "" {
		return fmt.Errorf("exposureflow.version is required")
	}

	switch cfg.Provider.Backend {
	case BackendIbgw, BackendBinance, BackendPaper:
	default:
		return fmt.Errorf("provider.backend '%s' is invalid (ibgw, binance or paper)", cfg.Provider.Backend)
	}

	if cfg.Provider.Backend == BackendPaper && cfg.Provider.Paper.File == "" {
		return fmt.Errorf("provider.paper.file is required when the paper backend is selected")
	}

	if IsProductionLike(AppEnvironment()) {
		if cfg.Provider.Backend == BackendIbgw && cfg.Provider.Ibgw.AccountID == "" {
			return fmt.Errorf("provider.ibgw.account_id is required in %s", AppEnvironment())
		}
		if cfg.Provider.Backend == BackendBinance && (cfg.Provider.Binance.APIKey == "" || cfg.Provider.Binance.APISecret == "") {
			return fmt.Errorf("provider.binance credentials are required in %s", AppEnvironment())
		}
	}

	if cfg.Refresh.IntervalMs < 1000 {
		return fmt.Errorf("refresh.interval_ms must be at least 1000")
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" && os.Getenv("AWS_REGION") == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when CloudWatch is enabled")
	}

	return nil
}
