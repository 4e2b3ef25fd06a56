// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package config holds all application configuration, loaded with Koanf v2
// from layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the tracker.
type Config struct {
	Ingestion IngestionConfig `koanf:"ingestion"`
	Simulator SimulatorConfig `koanf:"simulator"`
	Provider  ProviderConfig  `koanf:"provider"`
	OpenFeed  OpenFeedConfig  `koanf:"openfeed"`
	Channel   ChannelConfig   `koanf:"channel"`
	Database  DatabaseConfig  `koanf:"database"`
	Sinks     SinksConfig     `koanf:"sinks"`
	Monitor   MonitorConfig   `koanf:"monitor"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// IngestionConfig selects which position adapters run.
type IngestionConfig struct {
	// Mode is a comma-separated adapter list or "all".
	// Known adapters: simulator, provider, openfeed, webhook.
	Mode string `koanf:"mode"`
}

// Adapters returns the enabled adapter names.
func (c IngestionConfig) Adapters() []string {
	if strings.EqualFold(strings.TrimSpace(c.Mode), "all") {
		return []string{"simulator", "provider", "openfeed", "webhook"}
	}
	var out []string
	for _, part := range strings.Split(c.Mode, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Enabled reports whether the named adapter is switched on.
func (c IngestionConfig) Enabled(adapter string) bool {
	for _, a := range c.Adapters() {
		if a == adapter {
			return true
		}
	}
	return false
}

// SimulatorConfig tunes the synthetic fleet adapter used for development
// and demos.
type SimulatorConfig struct {
	Interval  time.Duration `koanf:"interval"`
	FleetMin  int           `koanf:"fleet_min"`
	FleetMax  int           `koanf:"fleet_max"`
	MaxJitter float64       `koanf:"max_jitter"`
}

// ProviderConfig holds settings for the commercial position provider poller.
type ProviderConfig struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	Interval  time.Duration `koanf:"interval"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
}

// OpenFeedConfig holds settings for the public open-data feed poller.
type OpenFeedConfig struct {
	URL      string        `koanf:"url"`
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ChannelConfig configures the message channel between ingestion and the
// position processor. Mode "embedded" uses an in-process Go channel pub/sub;
// "nats" uses NATS JetStream, optionally with an embedded server.
type ChannelConfig struct {
	Mode string     `koanf:"mode"`
	NATS NATSConfig `koanf:"nats"`

	// Router middleware settings (apply to both modes).
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	ThrottlePerSecond    int           `koanf:"throttle_per_second"` // 0 = unlimited
	PoisonTopic          string        `koanf:"poison_topic"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`

	// Dedup cache sizing for the processor.
	DedupCapacity int           `koanf:"dedup_capacity"`
	DedupTTL      time.Duration `koanf:"dedup_ttl"`
}

// NATSConfig holds NATS JetStream connection and stream settings.
type NATSConfig struct {
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	StreamName       string        `koanf:"stream_name"`
	RetentionDays    int           `koanf:"stream_retention_days"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// SinksConfig configures the best-effort downstream projections.
type SinksConfig struct {
	SearchIndex SearchIndexConfig `koanf:"search_index"`
	Graph       GraphConfig       `koanf:"graph"`
	Analytics   AnalyticsConfig   `koanf:"analytics"`
}

// SearchIndexConfig configures the search index projection sink.
type SearchIndexConfig struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url"`
	IndexName string        `koanf:"index_name"`
	Timeout   time.Duration `koanf:"timeout"`
}

// GraphConfig configures the knowledge graph projection sink.
type GraphConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// AnalyticsConfig toggles the optional analytics provider.
type AnalyticsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// MonitorConfig tunes the stale vessel sweep.
type MonitorConfig struct {
	StaleThreshold time.Duration `koanf:"stale_threshold"`
	SweepInterval  time.Duration `koanf:"sweep_interval"`
}

// ServerConfig holds HTTP server settings for the webhook and ops endpoints.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	WebhookSecret   string        `koanf:"webhook_secret"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for internal consistency. It is called
// by Load after all sources are merged.
func (c *Config) Validate() error {
	adapters := c.Ingestion.Adapters()
	if len(adapters) == 0 {
		return fmt.Errorf("ingestion.mode must name at least one adapter or \"all\"")
	}
	known := map[string]bool{"simulator": true, "provider": true, "openfeed": true, "webhook": true}
	for _, a := range adapters {
		if !known[a] {
			return fmt.Errorf("ingestion.mode: unknown adapter %q", a)
		}
	}

	if c.Ingestion.Enabled("provider") {
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider.base_url is required when the provider adapter is enabled")
		}
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required when the provider adapter is enabled")
		}
	}
	if c.Ingestion.Enabled("openfeed") && c.OpenFeed.URL == "" {
		return fmt.Errorf("openfeed.url is required when the openfeed adapter is enabled")
	}

	switch c.Channel.Mode {
	case "embedded", "nats":
	default:
		return fmt.Errorf("channel.mode must be \"embedded\" or \"nats\", got %q", c.Channel.Mode)
	}
	if c.Channel.Mode == "nats" {
		if !c.Channel.NATS.EmbeddedServer && c.Channel.NATS.URL == "" {
			return fmt.Errorf("channel.nats.url is required when channel.nats.embedded_server is false")
		}
		if c.Channel.NATS.SubscribersCount < 1 {
			return fmt.Errorf("channel.nats.subscribers_count must be at least 1")
		}
	}
	if c.Channel.RetryCount < 0 {
		return fmt.Errorf("channel.retry_count must not be negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Sinks.SearchIndex.Enabled && c.Sinks.SearchIndex.URL == "" {
		return fmt.Errorf("sinks.search_index.url is required when the search index sink is enabled")
	}
	if c.Sinks.Graph.Enabled && c.Sinks.Graph.URL == "" {
		return fmt.Errorf("sinks.graph.url is required when the graph sink is enabled")
	}

	if c.Monitor.StaleThreshold <= 0 {
		return fmt.Errorf("monitor.stale_threshold must be positive")
	}
	if c.Monitor.SweepInterval <= 0 {
		return fmt.Errorf("monitor.sweep_interval must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Ingestion.Enabled("webhook") && c.Server.WebhookSecret == "" {
		return fmt.Errorf("server.webhook_secret is required when the webhook adapter is enabled")
	}

	if c.Simulator.FleetMin < 1 || c.Simulator.FleetMax < c.Simulator.FleetMin {
		return fmt.Errorf("simulator fleet bounds invalid: min=%d max=%d", c.Simulator.FleetMin, c.Simulator.FleetMax)
	}

	return nil
}
