// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"errors"

	"github.com/GYulius/SoWR-sub000/internal/logging"
	"github.com/GYulius/SoWR-sub000/internal/metrics"
)

// Ingestor is the shared intake path for every adapter: normalize the raw
// payload, count it, publish it. Adapters differ only in how they acquire
// payloads.
type Ingestor struct {
	normalizer *Normalizer
	publisher  *Publisher
}

// NewIngestor creates the shared intake path.
func NewIngestor(publisher *Publisher) (*Ingestor, error) {
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	return &Ingestor{
		normalizer: NewNormalizer(),
		publisher:  publisher,
	}, nil
}

// Ingest processes one raw payload from the named adapter.
//
// A rejected payload is logged and dropped; the returned error is the
// *RejectError so HTTP-facing callers can surface it, but loop-based
// adapters are free to ignore it. A publish failure is returned as-is and
// means the observation was lost upstream of the channel.
func (i *Ingestor) Ingest(ctx context.Context, adapter string, payload []byte) error {
	metrics.RecordIngest(adapter)

	msg, err := i.normalizer.Normalize(adapter, payload)
	if err != nil {
		var reject *RejectError
		if errors.As(err, &reject) {
			metrics.RecordReject(reject.Reason)
			logging.Warn().
				Str("adapter", adapter).
				Str("reason", reject.Reason).
				Msg("payload rejected")
			return err
		}
		return err
	}

	if err := i.publisher.PublishPosition(ctx, msg); err != nil {
		logging.Error().
			Err(err).
			Str("adapter", adapter).
			Str("vessel_id", msg.VesselID).
			Msg("position publish failed")
		return err
	}

	logging.Debug().
		Str("adapter", adapter).
		Str("vessel_id", msg.VesselID).
		Time("recorded_at", msg.RecordedAt).
		Msg("position ingested")
	return nil
}

// IngestMessage publishes an already-normalized message, used by adapters
// that construct PositionMessage values directly (the simulator).
func (i *Ingestor) IngestMessage(ctx context.Context, msg *PositionMessage) error {
	metrics.RecordIngest(msg.Adapter)

	if err := msg.Validate(); err != nil {
		var reject *RejectError
		if errors.As(err, &reject) {
			metrics.RecordReject(reject.Reason)
		}
		return err
	}

	return i.publisher.PublishPosition(ctx, msg)
}
