// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/GYulius/SoWR-sub000/internal/models"
)

// SchemaVersion is the current position message schema version.
// Increment on breaking changes to PositionMessage.
const SchemaVersion = 1

// Channel topics.
const (
	// TopicPositions carries normalized position messages from all adapters
	// to the processor. The originating adapter travels in message metadata.
	TopicPositions = "positions.raw"

	// TopicVesselEvents carries processed vessel position events for
	// downstream consumers (event bus fan-out).
	TopicVesselEvents = "events.vessel.position"
)

// Metadata keys set on channel messages.
const (
	MetaAdapter   = "adapter"
	MetaVesselID  = "vessel_id"
	MetaMessageID = "message_id"
)

// Adapter name constants, used in metadata and metrics labels.
const (
	AdapterSimulator = "simulator"
	AdapterProvider  = "provider"
	AdapterOpenFeed  = "openfeed"
	AdapterWebhook   = "webhook"
)

// PositionMessage is the canonical normalized position report that travels
// over the channel. All adapters produce this shape; the processor consumes
// only this shape.
//
// Optional telemetry fields are pointers so absent and zero are distinct:
// a vessel genuinely stopped (speed 0) must not look like a vessel whose
// speed was never reported.
type PositionMessage struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	// Identification
	MessageID string    `json:"message_id"`
	VesselID  string    `json:"vessel_id" validate:"required"`
	Adapter   string    `json:"adapter"`
	RecordedAt time.Time `json:"recorded_at"`

	// Static vessel attributes, filled opportunistically from the payload.
	Name        string `json:"name,omitempty"`
	Operator    string `json:"operator,omitempty"`
	Capacity    *int   `json:"capacity,omitempty"`
	SecondaryID string `json:"secondary_id,omitempty"`
	CallSign    string `json:"call_sign,omitempty"`

	// Telemetry
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Speed        *float64 `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Course       *float64 `json:"course,omitempty" validate:"omitempty,gte=0,lt=360"`
	Heading      *float64 `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	StationRange *float64 `json:"station_range,omitempty" validate:"omitempty,gte=0"`

	// Voyage details, reported by provider feeds only.
	VesselType  string `json:"vessel_type,omitempty"`
	Destination string `json:"destination,omitempty"`
	ETA         string `json:"eta,omitempty"`

	// Signal classification
	SignalQuality models.SignalQuality `json:"signal_quality,omitempty"`
	DataSource    models.DataSource    `json:"data_source,omitempty"`

	// Raw payload for debugging and future fields.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// NewPositionMessage creates a message with a unique ID and schema version.
func NewPositionMessage(adapter string) *PositionMessage {
	return &PositionMessage{
		SchemaVersion: SchemaVersion,
		MessageID:     uuid.New().String(),
		Adapter:       adapter,
	}
}

// Fingerprint returns the deduplication key: one vessel cannot report two
// distinct positions at the same instant, so vessel plus recorded timestamp
// identifies the observation across redeliveries.
func (m *PositionMessage) Fingerprint() string {
	return m.VesselID + "|" + m.RecordedAt.UTC().Format(time.RFC3339Nano)
}

// HasCoordinates reports whether both latitude and longitude are present.
func (m *PositionMessage) HasCoordinates() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// EnsureSchemaVersion sets the schema version on legacy messages.
func (m *PositionMessage) EnsureSchemaVersion() {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = SchemaVersion
	}
}

// Validate checks structural invariants that must hold after normalization.
func (m *PositionMessage) Validate() error {
	if m.MessageID == "" {
		return NewRejectError("missing_message_id", "")
	}
	if m.VesselID == "" {
		return NewRejectError("missing_vessel_id", "")
	}
	if m.RecordedAt.IsZero() {
		return NewRejectError("missing_timestamp", "vessel "+m.VesselID)
	}
	return nil
}

// VesselPositionEvent is published to the event bus after a message has been
// applied to the store. It carries the resulting live state, not the raw
// observation.
type VesselPositionEvent struct {
	EventID    string                `json:"event_id"`
	VesselRef  string                `json:"vessel_ref"` // store UUID
	VesselID   string                `json:"vessel_id"`
	Name       string                `json:"name,omitempty"`
	Latitude   *float64              `json:"latitude,omitempty"`
	Longitude  *float64              `json:"longitude,omitempty"`
	Speed      *float64              `json:"speed,omitempty"`
	Course     *float64              `json:"course,omitempty"`
	Status     models.TrackingStatus `json:"status"`
	DataSource models.DataSource     `json:"data_source,omitempty"`
	RecordedAt time.Time             `json:"recorded_at"`
	EmittedAt  time.Time             `json:"emitted_at"`
}

// NewVesselPositionEvent creates an event with a unique ID and emit time.
func NewVesselPositionEvent() *VesselPositionEvent {
	return &VesselPositionEvent{
		EventID:   uuid.New().String(),
		EmittedAt: time.Now().UTC(),
	}
}
