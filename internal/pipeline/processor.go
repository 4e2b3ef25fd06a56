// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/GYulius/SoWR-sub000/internal/cache"
	"github.com/GYulius/SoWR-sub000/internal/logging"
	"github.com/GYulius/SoWR-sub000/internal/metrics"
	"github.com/GYulius/SoWR-sub000/internal/models"
	"github.com/GYulius/SoWR-sub000/internal/tracking"
)

// VesselStore is the persistence surface the processor needs. The DuckDB
// implementation lives in internal/database.
type VesselStore interface {
	// FindOrCreateVessel returns the vessel for the given business id,
	// creating it on first sighting. The bool reports whether a new record
	// was created. Concurrent callers racing on the same id must converge
	// on a single record.
	FindOrCreateVessel(ctx context.Context, attrs models.VesselAttributes) (*models.Vessel, bool, error)

	// InsertPosition appends one history row. History is append-only.
	InsertPosition(ctx context.Context, rep *models.PositionReport) error

	// UpdateLiveState applies the candidate state if its RecordedAt is not
	// older than the vessel's last accepted update. Returns false when the
	// candidate lost the freshness comparison.
	UpdateLiveState(ctx context.Context, vesselID string, state models.LiveState) (bool, error)
}

// SearchIndexSink mirrors position history into a search index, one document
// per history entry.
type SearchIndexSink interface {
	IndexPosition(ctx context.Context, rep *models.PositionReport) error
}

// GraphSink projects vessel identity and latest position into a knowledge
// graph.
type GraphSink interface {
	UpsertVessel(ctx context.Context, v *models.Vessel) error
}

// EventBus receives a vessel position event after a message has been applied.
// *Publisher satisfies this.
type EventBus interface {
	PublishEvent(ctx context.Context, ev *VesselPositionEvent) error
}

// AnalyticsProvider observes accepted position reports. Implementations may
// drop everything (the disabled provider) or batch for offline analysis.
type AnalyticsProvider interface {
	RecordPosition(ctx context.Context, rep *models.PositionReport)
}

// ProcessorOptions carries the optional fan-out targets. Nil sinks are
// skipped entirely.
type ProcessorOptions struct {
	SearchIndex SearchIndexSink
	Graph       GraphSink
	EventBus    EventBus
	Analytics   AnalyticsProvider

	DedupCapacity int
	DedupTTL      time.Duration
}

// Processor consumes normalized position messages from the channel and
// applies them to the vessel store:
//
//  1. drop exact redeliveries (dedup cache on vessel plus timestamp)
//  2. find or create the vessel
//  3. append the position to history
//  4. evaluate tracking status and update live state, monotonic by RecordedAt
//  5. fan out to sinks, best effort
//
// Store failures are returned to the router for retry; sink failures are
// logged and swallowed so a degraded projection never blocks ingestion.
type Processor struct {
	store      VesselStore
	serializer *Serializer
	dedup      *cache.DedupCache
	opts       ProcessorOptions
}

// NewProcessor creates a processor bound to the given store.
func NewProcessor(store VesselStore, opts ProcessorOptions) (*Processor, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	return &Processor{
		store:      store,
		serializer: NewSerializer(),
		dedup:      cache.NewDedupCache(opts.DedupCapacity, opts.DedupTTL),
		opts:       opts,
	}, nil
}

// HandleMessage is the router handler for the positions topic. A nil return
// acks the message; an error triggers retry and eventually the poison topic.
func (p *Processor) HandleMessage(msg *message.Message) error {
	start := time.Now()

	pm, err := p.serializer.Unmarshal(msg.Payload)
	if err != nil {
		// Undecodable payloads will never decode on retry.
		metrics.RecordProcessingFailure("parse")
		return Permanent(fmt.Errorf("decode position %s: %w", msg.UUID, err))
	}
	if err := pm.Validate(); err != nil {
		metrics.RecordProcessingFailure("parse")
		return Permanent(fmt.Errorf("invalid position %s: %w", msg.UUID, err))
	}

	if err := p.Process(msg.Context(), pm); err != nil {
		return err
	}

	metrics.RecordProcessed(time.Since(start))
	metrics.DedupCacheEntries.Set(float64(p.dedup.Len()))
	return nil
}

// Process applies one normalized message to the store and fans out.
func (p *Processor) Process(ctx context.Context, pm *PositionMessage) error {
	if p.dedup.Seen(pm.Fingerprint()) {
		metrics.DuplicatesSkipped.Inc()
		logging.Debug().
			Str("vessel_id", pm.VesselID).
			Time("recorded_at", pm.RecordedAt).
			Msg("duplicate position skipped")
		return nil
	}

	vessel, created, err := p.store.FindOrCreateVessel(ctx, models.VesselAttributes{
		VesselID:    pm.VesselID,
		Name:        pm.Name,
		Operator:    pm.Operator,
		Capacity:    pm.Capacity,
		SecondaryID: pm.SecondaryID,
		CallSign:    pm.CallSign,
	})
	if err != nil {
		metrics.RecordProcessingFailure("vessel_lookup")
		p.dedup.Remove(pm.Fingerprint()) // allow redelivery to retry
		return fmt.Errorf("find or create vessel %s: %w", pm.VesselID, err)
	}
	if created {
		metrics.VesselsCreated.Inc()
		logging.Info().
			Str("vessel_id", pm.VesselID).
			Str("adapter", pm.Adapter).
			Msg("vessel auto-created on first sighting")
	}

	rep := &models.PositionReport{
		ID:            uuid.New(),
		VesselRef:     vessel.ID,
		VesselID:      pm.VesselID,
		Name:          pm.Name,
		Latitude:      pm.Latitude,
		Longitude:     pm.Longitude,
		Speed:         pm.Speed,
		Course:        pm.Course,
		Heading:       pm.Heading,
		VesselType:    pm.VesselType,
		Destination:   pm.Destination,
		ETA:           pm.ETA,
		SecondaryID:   pm.SecondaryID,
		CallSign:      pm.CallSign,
		StationRange:  pm.StationRange,
		SignalQuality: pm.SignalQuality,
		DataSource:    pm.DataSource,
		RecordedAt:    pm.RecordedAt.UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.store.InsertPosition(ctx, rep); err != nil {
		metrics.RecordProcessingFailure("history")
		p.dedup.Remove(pm.Fingerprint())
		return fmt.Errorf("insert position for %s: %w", pm.VesselID, err)
	}

	status := tracking.Evaluate(pm.SignalQuality, pm.StationRange)
	if !tracking.CanTransition(vessel.TrackingStatus, status) {
		status = vessel.TrackingStatus
	}
	state := models.LiveState{
		Latitude:   pm.Latitude,
		Longitude:  pm.Longitude,
		Speed:      pm.Speed,
		Course:     pm.Course,
		Status:     status,
		DataSource: pm.DataSource,
		RecordedAt: pm.RecordedAt.UTC(),
	}

	applied, err := p.store.UpdateLiveState(ctx, pm.VesselID, state)
	if err != nil {
		metrics.RecordProcessingFailure("live_state")
		p.dedup.Remove(pm.Fingerprint())
		return fmt.Errorf("update live state for %s: %w", pm.VesselID, err)
	}
	if applied {
		// Reflect the applied state on the in-memory copy for fan-out.
		vessel.CurrentLatitude = pm.Latitude
		vessel.CurrentLongitude = pm.Longitude
		vessel.CurrentSpeed = pm.Speed
		vessel.CurrentCourse = pm.Course
		vessel.TrackingStatus = status
		at := state.RecordedAt
		vessel.LastUpdateAt = &at
	} else {
		// Out-of-order arrival: history kept it, live state ignores it.
		// The history entry was still stored, so the projections still see
		// it; only the vessel's live state stays as is.
		metrics.StaleUpdatesIgnored.Inc()
		status = vessel.TrackingStatus
		logging.Debug().
			Str("vessel_id", pm.VesselID).
			Time("recorded_at", pm.RecordedAt).
			Msg("stale position ignored for live state")
	}

	p.fanOut(ctx, vessel, rep, pm, status)
	return nil
}

// fanOut delivers the stored history entry and the vessel's current live
// state to the configured sinks. It runs for every stored entry, including
// out-of-order ones. Every failure is swallowed: projections are
// rebuildable, the store is not.
func (p *Processor) fanOut(ctx context.Context, vessel *models.Vessel, rep *models.PositionReport, pm *PositionMessage, status models.TrackingStatus) {
	if p.opts.SearchIndex != nil {
		err := p.opts.SearchIndex.IndexPosition(ctx, rep)
		metrics.RecordSink("search_index", err)
		if err != nil {
			logging.Warn().Err(err).Str("vessel_id", vessel.VesselID).Msg("search index update failed")
		}
	}

	if p.opts.Graph != nil {
		// Graph upsert is the slowest projection; run it detached so a slow
		// graph endpoint cannot stall the consumer.
		v := *vessel
		go func() {
			gctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := p.opts.Graph.UpsertVessel(gctx, &v)
			metrics.RecordSink("graph", err)
			if err != nil {
				logging.Warn().Err(err).Str("vessel_id", v.VesselID).Msg("graph sink update failed")
			}
		}()
	}

	if p.opts.EventBus != nil {
		ev := NewVesselPositionEvent()
		ev.VesselRef = vessel.ID.String()
		ev.VesselID = vessel.VesselID
		ev.Name = vessel.Name
		ev.Latitude = pm.Latitude
		ev.Longitude = pm.Longitude
		ev.Speed = pm.Speed
		ev.Course = pm.Course
		ev.Status = status
		ev.DataSource = pm.DataSource
		ev.RecordedAt = pm.RecordedAt.UTC()

		err := p.opts.EventBus.PublishEvent(ctx, ev)
		metrics.RecordSink("event_bus", err)
		if err != nil {
			logging.Warn().Err(err).Str("vessel_id", vessel.VesselID).Msg("event bus publish failed")
		}
	}

	if p.opts.Analytics != nil {
		p.opts.Analytics.RecordPosition(ctx, rep)
	}
}
