// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer handles position message encoding for the channel.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts a position message to JSON bytes.
func (s *Serializer) Marshal(msg *PositionMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("validate message: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes back into a position message.
func (s *Serializer) Unmarshal(data []byte) (*PositionMessage, error) {
	var msg PositionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	msg.EnsureSchemaVersion()
	return &msg, nil
}

// MarshalEvent converts a vessel position event to JSON bytes.
func (s *Serializer) MarshalEvent(ev *VesselPositionEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// SerializeMessage is a convenience function that marshals a message to JSON.
func SerializeMessage(msg *PositionMessage) ([]byte, error) {
	return NewSerializer().Marshal(msg)
}

// DeserializeMessage is a convenience function that unmarshals JSON to a message.
func DeserializeMessage(data []byte) (*PositionMessage, error) {
	return NewSerializer().Unmarshal(data)
}
