// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/GYulius/SoWR-sub000/internal/models"
)

// fakeStore is an in-memory VesselStore with the same freshness semantics as
// the DuckDB implementation.
type fakeStore struct {
	mu      sync.Mutex
	vessels map[string]*models.Vessel
	history []*models.PositionReport

	failFindOrCreate error
	failInsert       error
	failUpdate       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{vessels: make(map[string]*models.Vessel)}
}

func (s *fakeStore) FindOrCreateVessel(_ context.Context, attrs models.VesselAttributes) (*models.Vessel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFindOrCreate != nil {
		return nil, false, s.failFindOrCreate
	}
	if v, ok := s.vessels[attrs.VesselID]; ok {
		cp := *v
		return &cp, false, nil
	}
	v := &models.Vessel{
		ID:              uuid.New(),
		VesselID:        attrs.VesselID,
		Name:            attrs.Name,
		Operator:        attrs.Operator,
		TrackingEnabled: true,
		TrackingStatus:  models.StatusNoSignal,
		CreatedAt:       time.Now().UTC(),
	}
	s.vessels[attrs.VesselID] = v
	cp := *v
	return &cp, true, nil
}

func (s *fakeStore) InsertPosition(_ context.Context, rep *models.PositionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return s.failInsert
	}
	s.history = append(s.history, rep)
	return nil
}

func (s *fakeStore) UpdateLiveState(_ context.Context, vesselID string, state models.LiveState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return false, s.failUpdate
	}
	v, ok := s.vessels[vesselID]
	if !ok {
		return false, errors.New("vessel not found")
	}
	if v.LastUpdateAt != nil && state.RecordedAt.Before(*v.LastUpdateAt) {
		return false, nil
	}
	v.CurrentLatitude = state.Latitude
	v.CurrentLongitude = state.Longitude
	v.CurrentSpeed = state.Speed
	v.CurrentCourse = state.Course
	v.TrackingStatus = state.Status
	at := state.RecordedAt
	v.LastUpdateAt = &at
	return true, nil
}

func (s *fakeStore) vessel(id string) *models.Vessel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vessels[id]
}

func (s *fakeStore) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func (s *fakeStore) historyAt(i int) *models.PositionReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[i]
}

type fakeSearchSink struct {
	mu   sync.Mutex
	docs []*models.PositionReport
	err  error
}

func (f *fakeSearchSink) IndexPosition(_ context.Context, rep *models.PositionReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, rep)
	return nil
}

func (f *fakeSearchSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func (f *fakeSearchSink) doc(i int) *models.PositionReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[i]
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []*VesselPositionEvent
	err    error
}

func (f *fakeEventBus) PublishEvent(_ context.Context, ev *VesselPositionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEventBus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func testMessage(vesselID string, at time.Time) *PositionMessage {
	msg := NewPositionMessage(AdapterProvider)
	msg.VesselID = vesselID
	lat, lon := 45.2, 28.9
	msg.Latitude = &lat
	msg.Longitude = &lon
	msg.SignalQuality = models.SignalGood
	msg.RecordedAt = at
	return msg
}

func newTestProcessor(t *testing.T, store VesselStore, opts ProcessorOptions) *Processor {
	t.Helper()
	p, err := NewProcessor(store, opts)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

func TestProcessCreatesVesselAndHistory(t *testing.T) {
	store := newFakeStore()
	search := &fakeSearchSink{}
	bus := &fakeEventBus{}
	p := newTestProcessor(t, store, ProcessorOptions{SearchIndex: search, EventBus: bus})

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := p.Process(context.Background(), testMessage("RO-001", at)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	v := store.vessel("RO-001")
	if v == nil {
		t.Fatal("vessel not created")
	}
	if v.TrackingStatus != models.StatusTracked {
		t.Errorf("status = %q, want TRACKED", v.TrackingStatus)
	}
	if v.LastUpdateAt == nil || !v.LastUpdateAt.Equal(at) {
		t.Errorf("LastUpdateAt = %v, want %v", v.LastUpdateAt, at)
	}
	if store.historyLen() != 1 {
		t.Errorf("history rows = %d, want 1", store.historyLen())
	}
	if search.count() != 1 {
		t.Errorf("search index calls = %d, want 1", search.count())
	}
	if bus.count() != 1 {
		t.Errorf("event bus publishes = %d, want 1", bus.count())
	}
}

func TestProcessDuplicateSkipped(t *testing.T) {
	store := newFakeStore()
	p := newTestProcessor(t, store, ProcessorOptions{})

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	msg := testMessage("RO-001", at)

	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	// Redelivery: same vessel, same recorded timestamp.
	redelivery := testMessage("RO-001", at)
	if err := p.Process(context.Background(), redelivery); err != nil {
		t.Fatalf("second Process: %v", err)
	}

	if store.historyLen() != 1 {
		t.Errorf("history rows = %d, want 1 after duplicate", store.historyLen())
	}
}

func TestProcessMonotonicLiveState(t *testing.T) {
	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	orders := map[string][]time.Time{
		"in order":     {t1, t2},
		"out of order": {t2, t1},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			store := newFakeStore()
			p := newTestProcessor(t, store, ProcessorOptions{})

			for i, at := range order {
				msg := testMessage("RO-001", at)
				lat := 45.0 + float64(i)
				msg.Latitude = &lat
				if err := p.Process(context.Background(), msg); err != nil {
					t.Fatalf("Process(%v): %v", at, err)
				}
			}

			v := store.vessel("RO-001")
			if v.LastUpdateAt == nil || !v.LastUpdateAt.Equal(t2) {
				t.Errorf("LastUpdateAt = %v, want %v regardless of arrival order", v.LastUpdateAt, t2)
			}
			if store.historyLen() != 2 {
				t.Errorf("history rows = %d, want 2 (late arrivals still recorded)", store.historyLen())
			}
		})
	}
}

func TestProcessCarriesVoyageFields(t *testing.T) {
	store := newFakeStore()
	search := &fakeSearchSink{}
	p := newTestProcessor(t, store, ProcessorOptions{SearchIndex: search})

	msg := testMessage("RO-001", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	hdg := 115.0
	msg.Heading = &hdg
	msg.VesselType = "barge"
	msg.Destination = "Galati"
	msg.ETA = "2026-08-31T06:00:00Z"

	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if store.historyLen() != 1 {
		t.Fatalf("history rows = %d, want 1", store.historyLen())
	}
	rep := store.historyAt(0)
	if rep.Heading == nil || *rep.Heading != 115 {
		t.Errorf("Heading = %v, want 115", rep.Heading)
	}
	if rep.VesselType != "barge" || rep.Destination != "Galati" || rep.ETA != "2026-08-31T06:00:00Z" {
		t.Errorf("voyage fields = %q/%q/%q, want barge/Galati/2026-08-31T06:00:00Z",
			rep.VesselType, rep.Destination, rep.ETA)
	}
	if doc := search.doc(0); doc.Heading == nil || doc.VesselType != "barge" {
		t.Errorf("indexed document missing voyage fields: %+v", doc)
	}
}

func TestProcessStaleEntryStillFansOut(t *testing.T) {
	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Minute)

	store := newFakeStore()
	search := &fakeSearchSink{}
	bus := &fakeEventBus{}
	p := newTestProcessor(t, store, ProcessorOptions{SearchIndex: search, EventBus: bus})

	if err := p.Process(context.Background(), testMessage("RO-001", t1)); err != nil {
		t.Fatalf("Process(t1): %v", err)
	}
	// Late arrival: history keeps it, live state ignores it, and the
	// projections must still see the stored entry.
	if err := p.Process(context.Background(), testMessage("RO-001", t0)); err != nil {
		t.Fatalf("Process(t0): %v", err)
	}

	v := store.vessel("RO-001")
	if v.LastUpdateAt == nil || !v.LastUpdateAt.Equal(t1) {
		t.Errorf("LastUpdateAt = %v, want %v (late arrival must not regress it)", v.LastUpdateAt, t1)
	}
	if search.count() != 2 {
		t.Errorf("search index documents = %d, want 2 (one per history entry)", search.count())
	}
	if !search.doc(1).RecordedAt.Equal(t0) {
		t.Errorf("second document RecordedAt = %v, want %v", search.doc(1).RecordedAt, t0)
	}
	if bus.count() != 2 {
		t.Errorf("event bus publishes = %d, want 2", bus.count())
	}
}

func TestProcessStatusTransitions(t *testing.T) {
	store := newFakeStore()
	p := newTestProcessor(t, store, ProcessorOptions{})

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("out of range", func(t *testing.T) {
		msg := testMessage("RO-001", base)
		rng := 75.0
		msg.StationRange = &rng
		if err := p.Process(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
		if got := store.vessel("RO-001").TrackingStatus; got != models.StatusOutOfRange {
			t.Errorf("status = %q, want OUT_OF_RANGE", got)
		}
	})

	t.Run("no signal outranks range", func(t *testing.T) {
		msg := testMessage("RO-001", base.Add(time.Minute))
		rng := 75.0
		msg.StationRange = &rng
		msg.SignalQuality = models.SignalNone
		if err := p.Process(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
		if got := store.vessel("RO-001").TrackingStatus; got != models.StatusNoSignal {
			t.Errorf("status = %q, want NO_SIGNAL", got)
		}
	})

	t.Run("recovery to tracked", func(t *testing.T) {
		msg := testMessage("RO-001", base.Add(2*time.Minute))
		if err := p.Process(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
		if got := store.vessel("RO-001").TrackingStatus; got != models.StatusTracked {
			t.Errorf("status = %q, want TRACKED", got)
		}
	})
}

func TestProcessSinkFailureSwallowed(t *testing.T) {
	store := newFakeStore()
	search := &fakeSearchSink{err: errors.New("index unavailable")}
	bus := &fakeEventBus{err: errors.New("bus down")}
	p := newTestProcessor(t, store, ProcessorOptions{SearchIndex: search, EventBus: bus})

	msg := testMessage("RO-001", time.Now().UTC())
	if err := p.Process(context.Background(), msg); err != nil {
		t.Errorf("sink failures must not fail processing, got %v", err)
	}
	if store.historyLen() != 1 {
		t.Errorf("history rows = %d, want 1", store.historyLen())
	}
}

func TestProcessStoreFailureRetryable(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("duckdb locked")
	store.failInsert = boom
	p := newTestProcessor(t, store, ProcessorOptions{})

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	msg := testMessage("RO-001", at)

	err := p.Process(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error from store failure")
	}
	if IsPermanent(err) {
		t.Error("store failures must stay retryable")
	}

	// The fingerprint must be released so the redelivery is not treated as a
	// duplicate of the failed attempt.
	store.failInsert = nil
	if err := p.Process(context.Background(), testMessage("RO-001", at)); err != nil {
		t.Fatalf("redelivery after failure: %v", err)
	}
	if store.historyLen() != 1 {
		t.Errorf("history rows = %d, want 1", store.historyLen())
	}
}

func TestHandleMessageUndecodablePayloadIsPermanent(t *testing.T) {
	p := newTestProcessor(t, newFakeStore(), ProcessorOptions{})

	msg := message.NewMessage("m1", []byte("not json"))
	err := p.HandleMessage(msg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsPermanent(err) {
		t.Errorf("undecodable payload must be permanent, got %v", err)
	}
}

func TestHandleMessageRoundTrip(t *testing.T) {
	store := newFakeStore()
	p := newTestProcessor(t, store, ProcessorOptions{})

	pm := testMessage("RO-009", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	data, err := SerializeMessage(pm)
	if err != nil {
		t.Fatalf("SerializeMessage: %v", err)
	}

	if err := p.HandleMessage(message.NewMessage(pm.MessageID, data)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if store.vessel("RO-009") == nil {
		t.Error("vessel not created from channel message")
	}
}
