// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamContext is the subset of jetstream.JetStream used by
// StreamInitializer, extracted for testing with fakes.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamSettings describes the positions stream.
type StreamSettings struct {
	Name          string
	Subjects      []string
	RetentionDays int
	MaxBytes      int64
}

// StreamInitializer ensures the JetStream stream exists with the right
// configuration before publishers and subscribers bind to it. Idempotent:
// an existing stream gets its configuration updated.
type StreamInitializer struct {
	js       JetStreamContext
	settings StreamSettings
}

// NewStreamInitializer creates a stream initializer.
func NewStreamInitializer(js JetStreamContext, settings StreamSettings) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}
	if settings.Name == "" {
		return nil, fmt.Errorf("stream name required")
	}
	if len(settings.Subjects) == 0 {
		return nil, fmt.Errorf("stream subjects required")
	}
	return &StreamInitializer{js: js, settings: settings}, nil
}

// EnsureStream creates or updates the stream. The duplicate window backs
// JetStream's publish-side deduplication by Nats-Msg-Id.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	maxAge := time.Duration(s.settings.RetentionDays) * 24 * time.Hour

	streamCfg := jetstream.StreamConfig{
		Name:        s.settings.Name,
		Subjects:    s.settings.Subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      maxAge,
		MaxBytes:    s.settings.MaxBytes,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	_, err := s.js.Stream(ctx, s.settings.Name)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.settings.Name, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.settings.Name, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", s.settings.Name, err)
}

// IsHealthy reports whether the stream is reachable.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, s.settings.Name)
	return err == nil
}
