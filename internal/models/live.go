// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package models

import "time"

// VesselAttributes carries the static identity fields used to find or create
// a vessel record on first sighting.
type VesselAttributes struct {
	VesselID    string
	Name        string
	Operator    string
	Capacity    *int
	SecondaryID string
	CallSign    string
}

// LiveState is the candidate replacement for a vessel's current position and
// tracking status. The store applies it only if RecordedAt is not older than
// the vessel's last accepted update.
type LiveState struct {
	Latitude   *float64
	Longitude  *float64
	Speed      *float64
	Course     *float64
	Status     TrackingStatus
	DataSource DataSource
	RecordedAt time.Time
}
