// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package models defines the durable data structures owned by the relational
// store: tracked vessels and their append-only position history.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackingStatus is the pipeline's belief about data freshness and quality
// for a vessel.
type TrackingStatus string

const (
	// StatusTracked indicates recent, usable position data.
	StatusTracked TrackingStatus = "TRACKED"
	// StatusOutOfRange indicates the vessel reports from beyond terrestrial
	// station range.
	StatusOutOfRange TrackingStatus = "OUT_OF_RANGE"
	// StatusNoSignal indicates the last message carried no usable signal, or
	// the vessel has gone stale.
	StatusNoSignal TrackingStatus = "NO_SIGNAL"
	// StatusOffline is reachable only through operator action or future
	// escalation of the stale sweep, never directly from a message.
	StatusOffline TrackingStatus = "OFFLINE"
)

// Valid reports whether s is one of the known tracking statuses.
func (s TrackingStatus) Valid() bool {
	switch s {
	case StatusTracked, StatusOutOfRange, StatusNoSignal, StatusOffline:
		return true
	}
	return false
}

// SignalQuality classifies the reception quality of a position report.
type SignalQuality string

const (
	SignalGood SignalQuality = "GOOD"
	SignalFair SignalQuality = "FAIR"
	SignalPoor SignalQuality = "POOR"
	SignalNone SignalQuality = "NONE"
)

// DataSource identifies the transmission path of a position report.
type DataSource string

const (
	SourceSatellite   DataSource = "SATELLITE"
	SourceTerrestrial DataSource = "TERRESTRIAL"
	SourceBoth        DataSource = "BOTH"
	SourceSimulation  DataSource = "SIMULATION"
)

// Vessel is the durable record for one tracked vessel, keyed by the stable
// business identifier VesselID. It is created on first sight of a vessel id,
// mutated by the position processor and the stale monitor, and never deleted
// by the pipeline.
type Vessel struct {
	ID       uuid.UUID `json:"id"`
	VesselID string    `json:"vessel_id"`

	Name            string `json:"name,omitempty"`
	Operator        string `json:"operator,omitempty"`
	Capacity        int    `json:"capacity,omitempty"`
	SecondaryID     string `json:"secondary_id,omitempty"`
	CallSign        string `json:"call_sign,omitempty"`
	TrackingEnabled bool   `json:"tracking_enabled"`

	// Live state, overwritten only by messages that are not older than
	// LastUpdateAt (monotonic per vessel).
	CurrentLatitude  *float64       `json:"current_latitude,omitempty"`
	CurrentLongitude *float64       `json:"current_longitude,omitempty"`
	CurrentSpeed     *float64       `json:"current_speed,omitempty"`
	CurrentCourse    *float64       `json:"current_course,omitempty"`
	LastUpdateAt     *time.Time     `json:"last_update_at,omitempty"`
	TrackingStatus   TrackingStatus `json:"tracking_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PositionReport is one append-only history entry. Entries are never mutated
// after insert; ordering within a vessel is by RecordedAt, not insertion
// order, so late arrivals do not regress the vessel's live state.
type PositionReport struct {
	ID        uuid.UUID `json:"id"`
	VesselRef uuid.UUID `json:"vessel_ref"`
	VesselID  string    `json:"vessel_id"`

	Name          string        `json:"name,omitempty"`
	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	Speed         *float64      `json:"speed,omitempty"`
	Course        *float64      `json:"course,omitempty"`
	Heading       *float64      `json:"heading,omitempty"`
	VesselType    string        `json:"vessel_type,omitempty"`
	Destination   string        `json:"destination,omitempty"`
	ETA           string        `json:"eta,omitempty"`
	SecondaryID   string        `json:"secondary_id,omitempty"`
	CallSign      string        `json:"call_sign,omitempty"`
	StationRange  *float64      `json:"station_range,omitempty"`
	SignalQuality SignalQuality `json:"signal_quality,omitempty"`
	DataSource    DataSource    `json:"data_source,omitempty"`

	// RecordedAt is the vessel-reported timestamp of the position, distinct
	// from the row insertion time.
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}
