// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestIngestionAdapters(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want []string
	}{
		{"all expands", "all", []string{"simulator", "provider", "openfeed", "webhook"}},
		{"single", "simulator", []string{"simulator"}},
		{"comma separated with spaces", " simulator , webhook ", []string{"simulator", "webhook"}},
		{"mixed case", "Simulator,WEBHOOK", []string{"simulator", "webhook"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IngestionConfig{Mode: tt.mode}.Adapters()
			if len(got) != len(tt.want) {
				t.Fatalf("Adapters() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Adapters()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Server.WebhookSecret = "s3cret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults with secret",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown adapter",
			mutate:  func(c *Config) { c.Ingestion.Mode = "simulator,ais" },
			wantErr: "unknown adapter",
		},
		{
			name:    "empty mode",
			mutate:  func(c *Config) { c.Ingestion.Mode = "" },
			wantErr: "at least one adapter",
		},
		{
			name:    "provider enabled without base url",
			mutate:  func(c *Config) { c.Ingestion.Mode = "provider" },
			wantErr: "provider.base_url",
		},
		{
			name: "provider enabled without api key",
			mutate: func(c *Config) {
				c.Ingestion.Mode = "provider"
				c.Provider.BaseURL = "https://positions.example.com"
			},
			wantErr: "provider.api_key",
		},
		{
			name:    "openfeed enabled without url",
			mutate:  func(c *Config) { c.Ingestion.Mode = "openfeed" },
			wantErr: "openfeed.url",
		},
		{
			name:    "bad channel mode",
			mutate:  func(c *Config) { c.Channel.Mode = "kafka" },
			wantErr: "channel.mode",
		},
		{
			name: "external nats without url",
			mutate: func(c *Config) {
				c.Channel.Mode = "nats"
				c.Channel.NATS.EmbeddedServer = false
				c.Channel.NATS.URL = ""
			},
			wantErr: "channel.nats.url",
		},
		{
			name: "nats zero subscribers",
			mutate: func(c *Config) {
				c.Channel.Mode = "nats"
				c.Channel.NATS.SubscribersCount = 0
			},
			wantErr: "subscribers_count",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "search index enabled without url",
			mutate: func(c *Config) {
				c.Sinks.SearchIndex.Enabled = true
				c.Sinks.SearchIndex.URL = ""
			},
			wantErr: "search_index.url",
		},
		{
			name:    "zero stale threshold",
			mutate:  func(c *Config) { c.Monitor.StaleThreshold = 0 },
			wantErr: "stale_threshold",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name: "webhook without secret",
			mutate: func(c *Config) {
				c.Ingestion.Mode = "webhook"
				c.Server.WebhookSecret = ""
			},
			wantErr: "webhook_secret",
		},
		{
			name: "fleet bounds inverted",
			mutate: func(c *Config) {
				c.Simulator.FleetMin = 5
				c.Simulator.FleetMax = 3
			},
			wantErr: "fleet bounds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"INGESTION_MODE", "ingestion.mode"},
		{"PROVIDER_API_KEY", "provider.api_key"},
		{"NATS_URL", "channel.nats.url"},
		{"DUCKDB_PATH", "database.path"},
		{"SEARCH_INDEX_URL", "sinks.search_index.url"},
		{"STALE_THRESHOLD", "monitor.stale_threshold"},
		{"HTTP_PORT", "server.port"},
		{"WEBHOOK_SECRET", "server.webhook_secret"},
		{"LOG_LEVEL", "logging.level"},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("INGESTION_MODE", "simulator")
	t.Setenv("DUCKDB_PATH", t.TempDir()+"/test.duckdb")
	t.Setenv("STALE_THRESHOLD", "5m")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Monitor.StaleThreshold != 5*time.Minute {
		t.Errorf("StaleThreshold = %v, want 5m", cfg.Monitor.StaleThreshold)
	}
	if !cfg.Ingestion.Enabled("simulator") || cfg.Ingestion.Enabled("webhook") {
		t.Errorf("Adapters = %v, want simulator only", cfg.Ingestion.Adapters())
	}
}
