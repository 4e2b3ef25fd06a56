// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package monitor demotes vessels that stopped reporting. It runs a periodic
// sweep against the vessel store and never talks to the message channel.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/logging"
	"github.com/GYulius/SoWR-sub000/internal/metrics"
	"github.com/GYulius/SoWR-sub000/internal/models"
)

// Store is the persistence surface the sweep needs. The DuckDB store in
// internal/database implements it.
type Store interface {
	// StaleVessels lists vessels whose last update is older than olderThan
	// and that are neither OFFLINE nor already demoted.
	StaleVessels(ctx context.Context, olderThan time.Time) ([]*models.Vessel, error)

	// MarkNoSignal demotes one vessel to NO_SIGNAL, re-checking freshness so
	// a concurrent processor write wins. Returns whether it was applied.
	MarkNoSignal(ctx context.Context, vesselID string, olderThan time.Time) (bool, error)
}

// Monitor is the stale vessel sweep.
type Monitor struct {
	cfg   config.MonitorConfig
	store Store
	now   func() time.Time
}

// New creates a monitor with the configured threshold and interval.
func New(cfg config.MonitorConfig, store Store) (*Monitor, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &Monitor{cfg: cfg, store: store, now: time.Now}, nil
}

// Run sweeps on the configured interval until the context is canceled. The
// first sweep happens after one full interval so a restart does not demote
// vessels before the adapters have had a chance to report.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Info().
		Dur("stale_threshold", m.cfg.StaleThreshold).
		Dur("sweep_interval", m.cfg.SweepInterval).
		Msg("stale vessel monitor started")

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("stale vessel monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				logging.Error().Err(err).Msg("stale sweep failed")
			}
		}
	}
}

// Sweep demotes every vessel whose last update predates the freshness
// threshold. Each vessel is read-then-write: the store re-checks freshness
// on the write, so a vessel that reported between the list and the update
// keeps its status.
func (m *Monitor) Sweep(ctx context.Context) error {
	start := m.now()
	cutoff := start.Add(-m.cfg.StaleThreshold).UTC()

	stale, err := m.store.StaleVessels(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale vessels: %w", err)
	}

	marked := 0
	for _, v := range stale {
		applied, err := m.store.MarkNoSignal(ctx, v.VesselID, cutoff)
		if err != nil {
			logging.Warn().Err(err).Str("vessel_id", v.VesselID).Msg("failed to demote stale vessel")
			continue
		}
		if applied {
			marked++
			logging.Info().
				Str("vessel_id", v.VesselID).
				Str("previous_status", string(v.TrackingStatus)).
				Time("last_update_at", lastUpdate(v)).
				Msg("vessel demoted to NO_SIGNAL")
		}
	}

	metrics.RecordSweep(time.Since(start), marked)
	logging.Debug().
		Int("stale", len(stale)).
		Int("marked", marked).
		Msg("stale sweep completed")
	return nil
}

func lastUpdate(v *models.Vessel) time.Time {
	if v.LastUpdateAt != nil {
		return *v.LastUpdateAt
	}
	return v.CreatedAt
}
