package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"exposureflow/internal/dashboard"
	"exposureflow/internal/feed"
	"exposureflow/internal/metrics"
	"exposureflow/logger"
	"exposureflow/poller"
)

// watchCmd runs the long lived service: interval aggregation passes, the
// monitoring dashboard, metric exporters and streamed quote updates, until
// SIGINT or SIGTERM.
type watchCmd struct{}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "run interval exposure passes with the dashboard" }
func (*watchCmd) Usage() string {
	return `exposureflow watch

  Starts the refresh loop against the configured backend and serves the
  monitoring dashboard until interrupted.
`
}

func (*watchCmd) SetFlags(f *flag.FlagSet) {}

func (c *watchCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, prov, err := loadApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	log := logger.GetLogger()
	log.WithFields(logger.Fields{
		"service": cfg.Exposureflow.Name,
		"version": cfg.Exposureflow.Version,
		"backend": prov.Name(),
	}).Info("starting exposureflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Prometheus.Enabled {
		metrics.Init(cfg.Metrics.Prometheus.Address)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Logging.DashboardName)
		logger.SetReportPublisher(metrics.PublishRuntimeReport)
		if err := metrics.CreateDashboardFromTemplate(ctx); err != nil {
			log.WithError(err).Warn("failed to create CloudWatch dashboard")
		}
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	updates := feed.NewUpdates(cfg.Feed.UpdateBuffer)
	metrics.StartChannelSizeMetrics(ctx, updates, 0)

	p := poller.NewPoller(cfg, prov, updates)
	if err := p.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start poller")
		return subcommands.ExitFailure
	}

	server, err := dashboard.NewServer(cfg.Dashboard, log, p.Report)
	if err != nil {
		log.WithError(err).Error("failed to build dashboard server")
		p.Stop()
		return subcommands.ExitFailure
	}

	dashboardErr := make(chan error, 1)
	if server != nil {
		log.WithFields(logger.Fields{"address": server.Address()}).Info("dashboard listening")
		go func() {
			dashboardErr <- server.Run(ctx, cfg.Exposureflow.Name)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	dashboardStopped := false
	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-dashboardErr:
		dashboardStopped = true
		if err != nil {
			log.WithError(err).Error("dashboard server failed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		if server != nil && !dashboardStopped {
			<-dashboardErr
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	updates.Close()
	log.Info("exposureflow stopped")
	return subcommands.ExitSuccess
}
