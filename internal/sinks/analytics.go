// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package sinks

import (
	"context"
	"sync"

	"github.com/GYulius/SoWR-sub000/internal/logging"
	"github.com/GYulius/SoWR-sub000/internal/models"
)

// DisabledAnalytics drops every report. Selected at startup unless the
// analytics provider is configured.
type DisabledAnalytics struct{}

func (DisabledAnalytics) RecordPosition(context.Context, *models.PositionReport) {}

// Analytics accumulates per-vessel report counts in memory and exposes a
// snapshot for operator tooling. It stands in for an external analytics
// backend; the capability interface keeps the processor unaware of which.
type Analytics struct {
	mu     sync.Mutex
	counts map[string]int64
	total  int64
}

// NewAnalytics creates the in-memory analytics provider.
func NewAnalytics() *Analytics {
	return &Analytics{counts: make(map[string]int64)}
}

// RecordPosition observes one accepted report. Never blocks on anything
// external.
func (a *Analytics) RecordPosition(_ context.Context, rep *models.PositionReport) {
	a.mu.Lock()
	a.counts[rep.VesselID]++
	a.total++
	total := a.total
	a.mu.Unlock()

	// Trace-level breadcrumb, visible only at the most verbose setting.
	if total%1000 == 0 {
		logging.Debug().Int64("total_reports", total).Msg("analytics checkpoint")
	}
}

// Snapshot returns a copy of the per-vessel counts and the grand total.
func (a *Analytics) Snapshot() (map[string]int64, int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[string]int64, len(a.counts))
	for k, v := range a.counts {
		counts[k] = v
	}
	return counts, a.total
}
