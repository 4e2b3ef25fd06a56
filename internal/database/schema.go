// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates the tables and indexes. All columns are defined in the
// initial CREATE TABLE statements; there is no migration machinery yet.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// vessels holds one durable record per tracked vessel. vessel_id is
		// the stable business key; id is the surrogate used by history rows.
		// The auto-create path relies on the UNIQUE constraint for race
		// safety under concurrent first sightings.
		`CREATE TABLE IF NOT EXISTS vessels (
			id UUID PRIMARY KEY,
			vessel_id VARCHAR NOT NULL UNIQUE,
			name VARCHAR DEFAULT '',
			operator VARCHAR DEFAULT '',
			capacity INTEGER,
			secondary_id VARCHAR DEFAULT '',
			call_sign VARCHAR DEFAULT '',
			tracking_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			current_latitude DOUBLE,
			current_longitude DOUBLE,
			current_speed DOUBLE,
			current_course DOUBLE,
			last_update_at TIMESTAMP,
			tracking_status VARCHAR NOT NULL DEFAULT 'TRACKED',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// position_history is append-only. Rows are never updated or deleted
		// by the pipeline; ordering within a vessel is by recorded_at.
		`CREATE TABLE IF NOT EXISTS position_history (
			id UUID PRIMARY KEY,
			vessel_ref UUID NOT NULL,
			vessel_id VARCHAR NOT NULL,
			name VARCHAR DEFAULT '',
			latitude DOUBLE,
			longitude DOUBLE,
			speed DOUBLE,
			course DOUBLE,
			heading DOUBLE,
			vessel_type VARCHAR DEFAULT '',
			destination VARCHAR DEFAULT '',
			eta VARCHAR DEFAULT '',
			secondary_id VARCHAR DEFAULT '',
			call_sign VARCHAR DEFAULT '',
			station_range DOUBLE,
			signal_quality VARCHAR DEFAULT '',
			data_source VARCHAR DEFAULT '',
			recorded_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return db.createIndexes(ctx)
}

// createIndexes creates indexes for the hot query paths: per-vessel history
// reads and the stale sweep's scan over last_update_at.
func (db *DB) createIndexes(ctx context.Context) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_history_vessel_recorded ON position_history(vessel_id, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_vessels_last_update ON vessels(last_update_at)`,
		`CREATE INDEX IF NOT EXISTS idx_vessels_status ON vessels(tracking_status)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
