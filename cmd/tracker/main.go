// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package main is the entry point for the SoWR position tracker.
//
// The tracker ingests live vessel position reports from the configured
// adapters, normalizes and validates them, moves them through an
// asynchronous message channel, and applies them to the DuckDB vessel store
// with best-effort fan-out to the search index, the knowledge graph and the
// event bus. A periodic sweep demotes vessels that stop reporting.
//
// # Initialization Order
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml, env)
//  2. Logging: zerolog, json or console format
//  3. Database: DuckDB vessel store
//  4. Channel: embedded gochannel or NATS JetStream (optionally in-process)
//  5. Sinks: search index, graph, analytics, selected by config
//  6. Processing: position processor, channel router, stale monitor
//  7. Adapters: simulator, provider poller, open-feed poller per INGESTION_MODE
//  8. HTTP: webhook ingestion plus healthz and metrics
//
// Everything runs under a Suture supervisor tree with three layers (ingest,
// processing, api) so a crashing adapter never takes down the consumer.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file, built-in defaults.
//
// Common settings:
//
//	export INGESTION_MODE=simulator,webhook
//	export CHANNEL_MODE=embedded        # or: nats
//	export DUCKDB_PATH=/data/sowr.duckdb
//	export STALE_THRESHOLD=10m
//	export WEBHOOK_SECRET=$(openssl rand -hex 32)
//	./tracker
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: adapters stop at the next
// tick, the router drains in-flight messages within the configured close
// timeout, then the channel and the database are closed.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/GYulius/SoWR-sub000/internal/api"
	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/database"
	"github.com/GYulius/SoWR-sub000/internal/logging"
	"github.com/GYulius/SoWR-sub000/internal/monitor"
	"github.com/GYulius/SoWR-sub000/internal/pipeline"
	"github.com/GYulius/SoWR-sub000/internal/sinks"
	"github.com/GYulius/SoWR-sub000/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Strs("adapters", cfg.Ingestion.Adapters()).
		Str("channel_mode", cfg.Channel.Mode).
		Str("db_path", cfg.Database.Path).
		Msg("starting position tracker")

	db, err := database.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wmLogger := pipeline.NewWatermillLogger()

	channel, err := pipeline.NewChannel(ctx, cfg.Channel, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build message channel")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Channel.CloseTimeout)
		defer cancel()
		if err := channel.Close(closeCtx); err != nil {
			logging.Error().Err(err).Msg("error closing message channel")
		}
	}()

	ingestor, err := pipeline.NewIngestor(channel.Publisher)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create ingestor")
	}

	processor, err := pipeline.NewProcessor(db, processorOptions(cfg, channel))
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create processor")
	}

	router, err := pipeline.NewRouter(cfg.Channel, channel.Subscriber,
		channel.Publisher.WatermillPublisher(), processor, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create router")
	}

	staleMonitor, err := monitor.New(cfg.Monitor, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create stale monitor")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if err := addAdapters(tree, cfg, ingestor); err != nil {
		logging.Fatal().Err(err).Msg("failed to build ingestion adapters")
	}

	tree.AddProcessingService(supervisor.NewRunLoopService("channel-router", router.Run))
	tree.AddProcessingService(supervisor.NewRunLoopService("stale-monitor", staleMonitor.Run))

	handler := api.NewHandler(cfg.Server, cfg.Ingestion.Enabled("webhook"), ingestor, db)
	httpServer := api.NewServer(cfg.Server, handler)
	tree.AddAPIService(supervisor.NewHTTPServerService("http-server", httpServer, 10*time.Second))

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree stopped with error")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service missed the shutdown deadline")
		}
	}

	logging.Info().Msg("position tracker stopped")
}

// processorOptions assembles the fan-out targets from configuration. One
// processor serves every combination; disabled sinks get no-op
// implementations.
func processorOptions(cfg *config.Config, channel *pipeline.Channel) pipeline.ProcessorOptions {
	opts := pipeline.ProcessorOptions{
		EventBus:      channel.Publisher,
		DedupCapacity: cfg.Channel.DedupCapacity,
		DedupTTL:      cfg.Channel.DedupTTL,
	}

	if cfg.Sinks.SearchIndex.Enabled {
		opts.SearchIndex = sinks.NewSearchIndex(cfg.Sinks.SearchIndex)
		logging.Info().Str("url", cfg.Sinks.SearchIndex.URL).Msg("search index sink enabled")
	} else {
		opts.SearchIndex = sinks.NoopSearchIndex{}
	}

	if cfg.Sinks.Graph.Enabled {
		opts.Graph = sinks.NewGraph(cfg.Sinks.Graph)
		logging.Info().Str("url", cfg.Sinks.Graph.URL).Msg("graph sink enabled")
	} else {
		opts.Graph = sinks.NoopGraph{}
	}

	if cfg.Sinks.Analytics.Enabled {
		opts.Analytics = sinks.NewAnalytics()
		logging.Info().Msg("analytics provider enabled")
	} else {
		opts.Analytics = sinks.DisabledAnalytics{}
	}

	return opts
}

// addAdapters registers the enabled ingestion adapters with the supervisor.
// The webhook adapter has no run loop; it lives inside the HTTP server.
func addAdapters(tree *supervisor.Tree, cfg *config.Config, ingestor *pipeline.Ingestor) error {
	if cfg.Ingestion.Enabled("simulator") {
		sim, err := pipeline.NewSimulator(cfg.Simulator, ingestor)
		if err != nil {
			return err
		}
		tree.AddIngestService(supervisor.NewRunLoopService("position-simulator", sim.Run))
	}

	if cfg.Ingestion.Enabled("provider") {
		poller, err := pipeline.NewProviderPoller(cfg.Provider, ingestor)
		if err != nil {
			return err
		}
		tree.AddIngestService(supervisor.NewRunLoopService("provider-poller", poller.Run))
	}

	if cfg.Ingestion.Enabled("openfeed") {
		poller, err := pipeline.NewOpenFeedPoller(cfg.OpenFeed, ingestor)
		if err != nil {
			return err
		}
		tree.AddIngestService(supervisor.NewRunLoopService("openfeed-poller", poller.Run))
	}

	return nil
}
