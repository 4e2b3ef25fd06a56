// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/sowr/config.yaml",
	"/etc/sowr/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, applied before file and env
// layers.
func defaultConfig() *Config {
	return &Config{
		Ingestion: IngestionConfig{
			Mode: "simulator",
		},
		Simulator: SimulatorConfig{
			Interval:  30 * time.Second,
			FleetMin:  3,
			FleetMax:  5,
			MaxJitter: 0.01,
		},
		Provider: ProviderConfig{
			Interval:  time.Minute,
			Timeout:   15 * time.Second,
			RateLimit: 1,
		},
		OpenFeed: OpenFeedConfig{
			Interval: 2 * time.Minute,
			Timeout:  20 * time.Second,
		},
		Channel: ChannelConfig{
			Mode: "embedded",
			NATS: NATSConfig{
				URL:              "nats://127.0.0.1:4222",
				EmbeddedServer:   true,
				StoreDir:         "/data/nats/jetstream",
				MaxMemory:        1 << 30,
				MaxStore:         10 << 30,
				StreamName:       "POSITIONS",
				RetentionDays:    7,
				DurableName:      "position-processor",
				QueueGroup:       "processors",
				SubscribersCount: 4,
				ConnectTimeout:   10 * time.Second,
			},
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			ThrottlePerSecond:    0,
			PoisonTopic:          "positions.poison",
			CloseTimeout:         30 * time.Second,
			DedupCapacity:        10000,
			DedupTTL:             10 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/sowr.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Sinks: SinksConfig{
			SearchIndex: SearchIndexConfig{
				Enabled:   false,
				IndexName: "vessels",
				Timeout:   10 * time.Second,
			},
			Graph: GraphConfig{
				Enabled: false,
				Timeout: 10 * time.Second,
			},
			Analytics: AnalyticsConfig{
				Enabled: false,
			},
		},
		Monitor: MonitorConfig{
			StaleThreshold: 10 * time.Minute,
			SweepInterval:  time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration with layered sources, ENV > file > defaults,
// then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps flat environment variable names to nested koanf
// paths. Unmapped variables are dropped so stray environment noise cannot
// leak into the configuration.
//
// Examples:
//   - INGESTION_MODE -> ingestion.mode
//   - PROVIDER_API_KEY -> provider.api_key
//   - NATS_URL -> channel.nats.url
//   - DUCKDB_PATH -> database.path
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Ingestion
		"ingestion_mode": "ingestion.mode",

		// Simulator
		"simulator_interval":   "simulator.interval",
		"simulator_fleet_min":  "simulator.fleet_min",
		"simulator_fleet_max":  "simulator.fleet_max",
		"simulator_max_jitter": "simulator.max_jitter",

		// Provider
		"provider_base_url":   "provider.base_url",
		"provider_api_key":    "provider.api_key",
		"provider_interval":   "provider.interval",
		"provider_timeout":    "provider.timeout",
		"provider_rate_limit": "provider.rate_limit",

		// Open feed
		"openfeed_url":      "openfeed.url",
		"openfeed_interval": "openfeed.interval",
		"openfeed_timeout":  "openfeed.timeout",

		// Channel
		"channel_mode":           "channel.mode",
		"channel_retry_count":    "channel.retry_count",
		"channel_retry_interval": "channel.retry_initial_interval",
		"channel_throttle":       "channel.throttle_per_second",
		"channel_poison_topic":   "channel.poison_topic",
		"channel_close_timeout":  "channel.close_timeout",
		"channel_dedup_capacity": "channel.dedup_capacity",
		"channel_dedup_ttl":      "channel.dedup_ttl",

		// NATS
		"nats_url":             "channel.nats.url",
		"nats_embedded":        "channel.nats.embedded_server",
		"nats_store_dir":       "channel.nats.store_dir",
		"nats_max_memory":      "channel.nats.max_memory",
		"nats_max_store":       "channel.nats.max_store",
		"nats_stream_name":     "channel.nats.stream_name",
		"nats_retention_days":  "channel.nats.stream_retention_days",
		"nats_durable_name":    "channel.nats.durable_name",
		"nats_queue_group":     "channel.nats.queue_group",
		"nats_subscribers":     "channel.nats.subscribers_count",
		"nats_connect_timeout": "channel.nats.connect_timeout",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Sinks
		"search_index_enabled": "sinks.search_index.enabled",
		"search_index_url":     "sinks.search_index.url",
		"search_index_name":    "sinks.search_index.index_name",
		"search_index_timeout": "sinks.search_index.timeout",
		"graph_sink_enabled":   "sinks.graph.enabled",
		"graph_sink_url":       "sinks.graph.url",
		"graph_sink_timeout":   "sinks.graph.timeout",
		"analytics_enabled":    "sinks.analytics.enabled",

		// Monitor
		"stale_threshold": "monitor.stale_threshold",
		"sweep_interval":  "monitor.sweep_interval",

		// Server
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"webhook_secret":      "server.webhook_secret",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
