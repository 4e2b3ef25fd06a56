// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package pipeline implements the position ingestion pipeline: adapters that
// acquire raw vessel position payloads, the normalizer that turns them into
// canonical position messages, the Watermill channel that decouples intake
// from persistence, and the processor that applies each message to the
// vessel store and fans results out to downstream sinks.
//
// Message flow:
//
//	adapter -> Normalizer -> Publisher -> [channel] -> Router -> Processor
//	                                                         -> history + live state (DuckDB)
//	                                                         -> search index / graph / event bus (best effort)
//
// The channel runs in one of two modes selected at startup: "embedded" uses
// Watermill's in-process Go channel pub/sub, "nats" uses NATS JetStream with
// durable consumers and at-least-once delivery. The processor is idempotent
// so both modes tolerate redelivery.
package pipeline
