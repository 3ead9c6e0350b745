// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Scrape  ScrapeConfig   `mapstructure:"scrape"`
	Enrich  EnrichConfig   `mapstructure:"enrich"`
	Alert   AlertConfig    `mapstructure:"alert"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Sources []SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScrapeConfig governs refresh cycle and scheduling behavior.
type ScrapeConfig struct {
	FetchTimeoutSeconds int     `mapstructure:"fetch_timeout_seconds"`
	ProbeTimeoutSeconds int     `mapstructure:"probe_timeout_seconds"`
	ProbeRatePerSec     float64 `mapstructure:"probe_rate_per_sec"`
	Timezone            string  `mapstructure:"timezone"`
	TargetHour          int     `mapstructure:"target_hour"`
	FreshnessMinutes    int     `mapstructure:"freshness_minutes"`
	MaxResults          int     `mapstructure:"max_results"`
	AlertThreshold      int     `mapstructure:"alert_threshold"`
}

// EnrichConfig controls the neighborhood resolver.
type EnrichConfig struct {
	StatePath string            `mapstructure:"state_path"`
	Seed      map[string]string `mapstructure:"seed"`
}

// AlertConfig chooses the alert delivery channel. An empty webhook URL
// falls back to log-only alerting.
type AlertConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SelectorConfig names the CSS selectors for an HTML source.
type SelectorConfig struct {
	Row          string `mapstructure:"row"`
	Name         string `mapstructure:"name"`
	Venue        string `mapstructure:"venue"`
	Neighborhood string `mapstructure:"neighborhood"`
	Date         string `mapstructure:"date"`
	StartTime    string `mapstructure:"start_time"`
	EndTime      string `mapstructure:"end_time"`
	Link         string `mapstructure:"link"`
}

// SourceConfig describes one registered source.
type SourceConfig struct {
	Name      string         `mapstructure:"name"`
	Type      string         `mapstructure:"type"`
	URL       string         `mapstructure:"url"`
	Weight    float64        `mapstructure:"weight"`
	Rank      int            `mapstructure:"rank"`
	ProbeURL  string         `mapstructure:"probe_url"`
	UserAgent string         `mapstructure:"user_agent"`
	Selectors SelectorConfig `mapstructure:"selectors"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scrape.fetch_timeout_seconds", 30)
	v.SetDefault("scrape.probe_timeout_seconds", 10)
	v.SetDefault("scrape.probe_rate_per_sec", 4)
	v.SetDefault("scrape.timezone", "America/New_York")
	v.SetDefault("scrape.target_hour", 10)
	v.SetDefault("scrape.freshness_minutes", 360)
	v.SetDefault("scrape.max_results", 20)
	v.SetDefault("scrape.alert_threshold", 3)
	v.SetDefault("enrich.state_path", "data/neighborhoods.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Source
// identity and weight rules are enforced again by the registry; the
// checks here fail earlier with config-file context.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.fetch_timeout_seconds must be > 0")
	}
	if c.Scrape.TargetHour < 0 || c.Scrape.TargetHour > 23 {
		return fmt.Errorf("scrape.target_hour must be in [0,23]")
	}
	if _, err := time.LoadLocation(c.Scrape.Timezone); err != nil {
		return fmt.Errorf("scrape.timezone: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources: entry with empty name")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("sources: duplicate name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Weight < 0 || s.Weight > 1 {
			return fmt.Errorf("sources: %q weight must be in [0,1]", s.Name)
		}
	}
	return nil
}

// FetchTimeout returns the per-source fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scrape.FetchTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the reachability probe timeout as a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Scrape.ProbeTimeoutSeconds) * time.Second
}

// Freshness returns the cache freshness window as a duration.
func (c Config) Freshness() time.Duration {
	return time.Duration(c.Scrape.FreshnessMinutes) * time.Minute
}
