// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/GYulius/SoWR-sub000/internal/models"
)

// RawPayload is a decoded but not yet normalized position document. Upstream
// payloads disagree on field names and types, so every read goes through the
// candidate-key tables below.
type RawPayload map[string]interface{}

// ParsePayload decodes a JSON document into a RawPayload.
func ParsePayload(data []byte) (RawPayload, error) {
	var raw RawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return raw, nil
}

// Candidate key tables. Order matters: the first present key wins, so the
// provider's native names outrank open-data aliases.
var (
	vesselIDKeys     = []string{"vesselId", "vessel_id", "shipId", "ship_id", "mmsi", "id"}
	nameKeys         = []string{"name", "vesselName", "shipName", "ship_name"}
	operatorKeys     = []string{"operator", "owner", "company"}
	capacityKeys     = []string{"capacity", "tonnage", "deadweight"}
	secondaryIDKeys  = []string{"secondaryId", "secondary_id", "registryId", "registry_id", "eni", "imo"}
	callSignKeys     = []string{"callSign", "call_sign", "callsign"}
	latitudeKeys     = []string{"latitude", "lat"}
	longitudeKeys    = []string{"longitude", "lon", "lng", "long"}
	speedKeys        = []string{"speed", "sog", "speedOverGround"}
	courseKeys       = []string{"course", "cog", "courseOverGround"}
	headingKeys      = []string{"heading", "hdg", "trueHeading", "true_heading"}
	vesselTypeKeys   = []string{"vesselType", "vessel_type", "shipType", "ship_type", "type"}
	destinationKeys  = []string{"destination", "dest", "destinationPort"}
	etaKeys          = []string{"eta", "estimatedArrival", "estimated_arrival"}
	stationRangeKeys = []string{"stationRange", "station_range", "range", "distanceToStation"}
	qualityKeys      = []string{"signalQuality", "signal_quality", "quality"}
	dataSourceKeys   = []string{"dataSource", "data_source", "source_type"}
	timestampKeys    = []string{"timestamp", "recordedAt", "recorded_at", "time", "positionTime"}
)

// value resolves one candidate key, first by exact match, then by a
// case-insensitive scan so VESSEL_ID-style shouting payloads still resolve.
func (p RawPayload) value(key string) (interface{}, bool) {
	if v, ok := p[key]; ok && v != nil {
		return v, true
	}
	for k, v := range p {
		if v != nil && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// String returns the first candidate key's value as a trimmed string.
func (p RawPayload) String(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := p.value(key)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			return strings.TrimSpace(s), true
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), true
		case json.Number:
			return s.String(), true
		}
	}
	return "", false
}

// Float returns the first candidate key's value coerced to float64. Numeric
// strings are accepted because open-data feeds quote their numbers.
func (p RawPayload) Float(keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := p.value(key)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Int returns the first candidate key's value coerced to int.
func (p RawPayload) Int(keys ...string) (int, bool) {
	if f, ok := p.Float(keys...); ok {
		return int(f), true
	}
	return 0, false
}

// Time returns the first candidate key's value parsed as a timestamp.
// Accepts RFC3339 strings and unix epoch seconds (number or string).
func (p RawPayload) Time(keys ...string) (time.Time, bool) {
	for _, key := range keys {
		v, ok := p.value(key)
		if !ok {
			continue
		}
		switch ts := v.(type) {
		case string:
			ts = strings.TrimSpace(ts)
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				return t.UTC(), true
			}
			if sec, err := strconv.ParseInt(ts, 10, 64); err == nil && sec > 0 {
				return time.Unix(sec, 0).UTC(), true
			}
		case float64:
			if ts > 0 {
				return time.Unix(int64(ts), 0).UTC(), true
			}
		case json.Number:
			if sec, err := ts.Int64(); err == nil && sec > 0 {
				return time.Unix(sec, 0).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// parseSignalQuality maps a payload value onto the known quality levels.
// Unknown values degrade to the empty quality rather than failing the message.
func parseSignalQuality(s string) models.SignalQuality {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GOOD":
		return models.SignalGood
	case "FAIR":
		return models.SignalFair
	case "POOR":
		return models.SignalPoor
	case "NONE", "NO_SIGNAL":
		return models.SignalNone
	default:
		return models.SignalQuality("")
	}
}

// parseDataSource maps a payload value onto the known transmission paths.
func parseDataSource(s string) models.DataSource {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SATELLITE", "SAT":
		return models.SourceSatellite
	case "TERRESTRIAL", "GROUND":
		return models.SourceTerrestrial
	case "BOTH":
		return models.SourceBoth
	case "SIMULATION", "SIMULATOR":
		return models.SourceSimulation
	default:
		return models.DataSource("")
	}
}
