// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the ingestion pipeline:
// - adapter intake and validation rejects
// - channel publish/consume throughput
// - processor outcomes and latency
// - database query performance (DuckDB)
// - sink fan-out failures
// - stale vessel sweeps
// - webhook endpoint traffic

var (
	// Ingestion Metrics
	IngestedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_total",
			Help: "Total number of raw payloads received, per adapter",
		},
		[]string{"adapter"}, // "simulator", "provider", "openfeed", "webhook"
	)

	RejectedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rejected_total",
			Help: "Total number of payloads rejected during normalization",
		},
		[]string{"reason"}, // "missing_vessel_id", "invalid_coordinates", "parse", "validation"
	)

	// Channel Metrics
	PublishedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_messages_published_total",
			Help: "Total number of position messages published to the channel",
		},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_publish_failures_total",
			Help: "Total number of failed publishes to the channel",
		},
	)

	ConsumedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_messages_consumed_total",
			Help: "Total number of position messages consumed from the channel",
		},
	)

	PoisonedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_messages_poisoned_total",
			Help: "Total number of messages routed to the poison topic",
		},
	)

	// Processor Metrics
	ProcessedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processor_messages_processed_total",
			Help: "Total number of position messages fully processed",
		},
	)

	ProcessingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_failures_total",
			Help: "Total number of processing failures",
		},
		[]string{"stage"}, // "parse", "vessel_lookup", "history", "live_state"
	)

	DuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processor_duplicates_skipped_total",
			Help: "Total number of messages dropped by the deduplication cache",
		},
	)

	StaleUpdatesIgnored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processor_stale_updates_ignored_total",
			Help: "Total number of live-state updates skipped because a newer position was already recorded",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "processor_duration_seconds",
			Help:    "Duration of end-to-end message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	VesselsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processor_vessels_created_total",
			Help: "Total number of vessel records auto-created on first sighting",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Sink Metrics
	SinkPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_publishes_total",
			Help: "Total number of successful sink deliveries",
		},
		[]string{"sink"}, // "search_index", "graph", "event_bus"
	)

	SinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_failures_total",
			Help: "Total number of failed sink deliveries (non-fatal)",
		},
		[]string{"sink"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// Stale Monitor Metrics
	StaleSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_sweeps_total",
			Help: "Total number of stale vessel sweeps executed",
		},
	)

	VesselsMarkedStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_vessels_marked_stale_total",
			Help: "Total number of vessels transitioned to NO_SIGNAL by the sweep",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monitor_sweep_duration_seconds",
			Help:    "Duration of stale vessel sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API Metrics
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total number of webhook requests received",
		},
		[]string{"status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Dedup Cache Metrics
	DedupCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_cache_entries",
			Help: "Current number of fingerprints in the deduplication cache",
		},
	)
)

// RecordIngest increments the intake counter for an adapter.
func RecordIngest(adapter string) {
	IngestedMessages.WithLabelValues(adapter).Inc()
}

// RecordReject increments the normalization reject counter.
func RecordReject(reason string) {
	RejectedMessages.WithLabelValues(reason).Inc()
}

// RecordPublish records the outcome of a channel publish.
func RecordPublish(err error) {
	if err != nil {
		PublishFailures.Inc()
		return
	}
	PublishedMessages.Inc()
}

// RecordProcessed records a fully processed message and its latency.
func RecordProcessed(duration time.Duration) {
	ProcessedMessages.Inc()
	ProcessingDuration.Observe(duration.Seconds())
}

// RecordProcessingFailure increments the failure counter for a pipeline stage.
func RecordProcessingFailure(stage string) {
	ProcessingFailures.WithLabelValues(stage).Inc()
}

// RecordDBQuery records the duration and outcome of a database operation.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordSink records the outcome of a sink delivery.
func RecordSink(sink string, err error) {
	if err != nil {
		SinkFailures.WithLabelValues(sink).Inc()
		return
	}
	SinkPublishes.WithLabelValues(sink).Inc()
}

// RecordSweep records a completed stale vessel sweep.
func RecordSweep(duration time.Duration, marked int) {
	StaleSweeps.Inc()
	SweepDuration.Observe(duration.Seconds())
	VesselsMarkedStale.Add(float64(marked))
}

// RecordWebhook increments the webhook counter for an HTTP status code.
func RecordWebhook(statusCode int) {
	WebhookRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCircuitBreakerState updates the state gauge for a named breaker.
// 0 is closed, 1 half-open, 2 open.
func RecordCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
