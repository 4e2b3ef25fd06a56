// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/GYulius/SoWR-sub000/internal/tracking"
	"github.com/GYulius/SoWR-sub000/internal/validation"
)

// Normalizer converts raw adapter payloads into canonical position messages.
// It is the single gate between untrusted input and the channel: anything it
// rejects never reaches the processor.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer using wall-clock time for messages that
// carry no timestamp.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize turns a raw JSON payload from the named adapter into a validated
// PositionMessage. A *RejectError return means the payload is unusable and
// must be dropped, not retried.
func (n *Normalizer) Normalize(adapter string, data []byte) (*PositionMessage, error) {
	raw, err := ParsePayload(data)
	if err != nil {
		return nil, NewRejectError("parse", err.Error())
	}
	return n.NormalizePayload(adapter, raw, data)
}

// NormalizePayload normalizes an already-decoded payload. The original bytes
// are retained on the message for debugging.
func (n *Normalizer) NormalizePayload(adapter string, raw RawPayload, original []byte) (*PositionMessage, error) {
	vesselID, _ := raw.String(vesselIDKeys...)
	if !validVesselID(vesselID) {
		return nil, NewRejectError("missing_vessel_id", "")
	}

	msg := NewPositionMessage(adapter)
	msg.VesselID = vesselID
	msg.RawPayload = json.RawMessage(original)

	if name, ok := raw.String(nameKeys...); ok {
		msg.Name = name
	}
	if op, ok := raw.String(operatorKeys...); ok {
		msg.Operator = op
	}
	if cap, ok := raw.Int(capacityKeys...); ok {
		msg.Capacity = &cap
	}
	if sid, ok := raw.String(secondaryIDKeys...); ok {
		msg.SecondaryID = sid
	}
	if cs, ok := raw.String(callSignKeys...); ok {
		msg.CallSign = cs
	}

	if lat, ok := raw.Float(latitudeKeys...); ok {
		msg.Latitude = &lat
	}
	if lon, ok := raw.Float(longitudeKeys...); ok {
		msg.Longitude = &lon
	}
	if speed, ok := raw.Float(speedKeys...); ok {
		msg.Speed = &speed
	}
	if course, ok := raw.Float(courseKeys...); ok {
		msg.Course = &course
	}
	if hdg, ok := raw.Float(headingKeys...); ok {
		msg.Heading = &hdg
	}
	if rng, ok := raw.Float(stationRangeKeys...); ok {
		msg.StationRange = &rng
	}

	if vt, ok := raw.String(vesselTypeKeys...); ok {
		msg.VesselType = vt
	}
	if dest, ok := raw.String(destinationKeys...); ok {
		msg.Destination = dest
	}
	if eta, ok := raw.String(etaKeys...); ok {
		msg.ETA = eta
	}

	if q, ok := raw.String(qualityKeys...); ok {
		msg.SignalQuality = parseSignalQuality(q)
	}

	// An explicit data source outranks the range heuristic.
	if ds, ok := raw.String(dataSourceKeys...); ok {
		msg.DataSource = parseDataSource(ds)
	}
	if msg.DataSource == "" {
		msg.DataSource = tracking.ClassifySource(msg.StationRange)
	}

	if ts, ok := raw.Time(timestampKeys...); ok {
		msg.RecordedAt = ts
	} else {
		msg.RecordedAt = n.now().UTC()
	}

	if verr := validation.ValidateStruct(msg); verr != nil {
		return nil, NewRejectError("validation", verr.Error())
	}
	return msg, nil
}

// validVesselID rejects empty identifiers and the literal "null" strings
// that broken upstream serializers emit.
func validVesselID(id string) bool {
	if id == "" {
		return false
	}
	switch strings.ToLower(id) {
	case "null", "nil", "undefined", "none":
		return false
	}
	return true
}
