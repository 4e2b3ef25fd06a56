// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package tracking derives a vessel's tracking status from the data quality
// of incoming position reports.
package tracking

import (
	"github.com/GYulius/SoWR-sub000/internal/models"
)

// SatelliteRangeThreshold is the station range (in river distance units)
// beyond which a report is considered out of terrestrial range.
//
// The threshold is an inherited heuristic, not a verified domain fact: an
// explicit data-source field on a report always outranks it.
const SatelliteRangeThreshold = 50.0

// Evaluate returns the tracking status implied by a single accepted message.
// Rules apply in priority order, first match wins:
//
//  1. signal quality NONE        -> NO_SIGNAL
//  2. station range > threshold  -> OUT_OF_RANGE
//  3. otherwise                  -> TRACKED
//
// OFFLINE is never returned here; it is reachable only via the stale sweep.
func Evaluate(quality models.SignalQuality, stationRange *float64) models.TrackingStatus {
	if quality == models.SignalNone {
		return models.StatusNoSignal
	}
	if stationRange != nil && *stationRange > SatelliteRangeThreshold {
		return models.StatusOutOfRange
	}
	return models.StatusTracked
}

// CanTransition reports whether a message-derived status may replace the
// current one. OFFLINE is owned by the stale sweep and operator tooling, so
// the message path never sets it; any status may leave OFFLINE once fresh
// data arrives.
func CanTransition(from, to models.TrackingStatus) bool {
	return to != models.StatusOffline
}

// ClassifySource infers the transmission path for a report that carries no
// explicit data-source field. Reports from beyond terrestrial station range
// are assumed to have arrived via satellite.
func ClassifySource(stationRange *float64) models.DataSource {
	if stationRange != nil && *stationRange > SatelliteRangeThreshold {
		return models.SourceSatellite
	}
	return models.SourceTerrestrial
}
