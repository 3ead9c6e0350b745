// Package cmd defines and implements the CLI commands for the
// eventcached executable.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/alert"
	"github.com/citypulse/eventcache/internal/cache"
	"github.com/citypulse/eventcache/internal/clock/system"
	"github.com/citypulse/eventcache/internal/config"
	"github.com/citypulse/eventcache/internal/enrich"
	"github.com/citypulse/eventcache/internal/health"
	"github.com/citypulse/eventcache/internal/listing"
	"github.com/citypulse/eventcache/internal/logging"
	"github.com/citypulse/eventcache/internal/probe"
	"github.com/citypulse/eventcache/internal/rank"
	"github.com/citypulse/eventcache/internal/registry"
	"github.com/citypulse/eventcache/internal/sched"
	"github.com/citypulse/eventcache/internal/source"
)

var cfgFile string

// app holds the long-lived services a command needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *cache.Store
	daily  *sched.Daily
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventcached",
		Short: "Aggregation cache for tonight's listings",
		Long: `eventcached maintains a continuously refreshed cache of short-lived
listings pulled from independent third-party sources, merges and
deduplicates them under a weighted priority policy, and serves ranked,
time-filtered slices over HTTP.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRefreshCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildApp loads configuration and wires every service. Registry
// validation failures are returned and fatal: the process must not
// start with a malformed source table.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	descriptors, err := source.BuildDescriptors(cfg.Sources, logger)
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}
	reg, err := registry.New(descriptors)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Scrape.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	resolver := enrich.NewResolver(cfg.Enrich.StatePath, cfg.Enrich.Seed, nil, logger)
	if err := resolver.Load(); err != nil {
		logger.Warn("enrichment state load failed", zap.Error(err))
	}

	var alerter listing.Alerter
	if cfg.Alert.WebhookURL != "" {
		alerter = alert.NewWebhookAlerter(cfg.Alert.WebhookURL, logger)
	} else {
		alerter = alert.NewLogAlerter(logger)
	}

	checker := probe.New(probe.Config{
		Timeout:       cfg.ProbeTimeout(),
		RatePerSecond: cfg.Scrape.ProbeRatePerSec,
	}, logger)
	tracker := health.NewTracker(reg.Labels(), cfg.Scrape.AlertThreshold)
	clock := system.New()

	store := cache.New(reg, checker, tracker, resolver, alerter, rank.Haversine{}, clock, cache.Config{
		FetchTimeout: cfg.FetchTimeout(),
		MaxResults:   cfg.Scrape.MaxResults,
		Freshness:    cfg.Freshness(),
		Location:     loc,
	}, logger)

	daily := sched.New(store, cfg.Scrape.TargetHour, loc, clock, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		daily:  daily,
	}, nil
}

func (a *app) close() {
	a.daily.Stop()
	_ = a.logger.Sync()
}
