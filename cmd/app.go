// Package cmd implements the CLI verbs of exposureflow: a one-shot exposure
// view, the long-running watch service and the option chain browser.
package cmd

import (
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"exposureflow/config"
	"exposureflow/internal/metrics"
	"exposureflow/logger"
	"exposureflow/models"
	"exposureflow/provider"
)

// Register adds every exposureflow verb to the commander.
func Register(c *subcommands.Commander) {
	c.Register(&viewCmd{}, "reports")
	c.Register(&chainCmd{}, "reports")
	c.Register(&watchCmd{}, "service")
}

var configPath = flag.String("config", "config/config.yml", "Path to configuration file")

// loadApp loads configuration, configures the logger and metric feature
// gates, and connects the selected provider backend.
func loadApp() (*config.Config, provider.Provider, error) {
	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.GetLogger()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return nil, nil, fmt.Errorf("failed to configure logger: %w", err)
	}

	metrics.Configure(cfg.Metrics)

	prov, err := provider.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build provider: %w", err)
	}
	return cfg, prov, nil
}

// reportCurrency picks the display currency of a report, defaulting to USD
// when the upstream did not name one.
func reportCurrency(report *models.ExposureReport) string {
	if report != nil && report.Currency != "" {
		return report.Currency
	}
	return "USD"
}
