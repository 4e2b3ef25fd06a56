// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/models"
)

// testDBSemaphore serializes DuckDB setup. Concurrent CGO connection
// creation can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func fp(f float64) *float64 { return &f }

func TestFindOrCreateVessel(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	attrs := models.VesselAttributes{
		VesselID: "RO-100",
		Name:     "MS Galati",
		Operator: "Danube Lines",
	}

	v, created, err := db.FindOrCreateVessel(ctx, attrs)
	if err != nil {
		t.Fatalf("FindOrCreateVessel: %v", err)
	}
	if !created {
		t.Error("first sighting must report created")
	}
	if v.TrackingStatus != models.StatusTracked {
		t.Errorf("initial status = %q, want TRACKED", v.TrackingStatus)
	}
	if !v.TrackingEnabled {
		t.Error("new vessels must have tracking enabled")
	}

	again, created, err := db.FindOrCreateVessel(ctx, attrs)
	if err != nil {
		t.Fatalf("second FindOrCreateVessel: %v", err)
	}
	if created {
		t.Error("second sighting must not report created")
	}
	if again.ID != v.ID {
		t.Errorf("second lookup returned different record: %s vs %s", again.ID, v.ID)
	}

	n, err := db.CountVessels(ctx)
	if err != nil {
		t.Fatalf("CountVessels: %v", err)
	}
	if n != 1 {
		t.Errorf("vessel count = %d, want 1", n)
	}
}

func TestFindOrCreateVesselConcurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	createdCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := db.FindOrCreateVessel(ctx, models.VesselAttributes{VesselID: "RO-200"})
			if err != nil {
				t.Errorf("FindOrCreateVessel: %v", err)
				return
			}
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	wins := 0
	for created := range createdCount {
		if created {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("insert won %d times, want exactly 1", wins)
	}

	n, err := db.CountVessels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("vessel count = %d, want 1 after concurrent creation", n)
	}
}

func TestGetVesselNotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetVessel(context.Background(), "RO-404"); err != ErrVesselNotFound {
		t.Errorf("err = %v, want ErrVesselNotFound", err)
	}
}

func TestInsertPositionAndHistory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	v, _, err := db.FindOrCreateVessel(ctx, models.VesselAttributes{VesselID: "RO-300"})
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rep := newTestReport(v, base.Add(time.Duration(i)*time.Minute))
		if err := db.InsertPosition(ctx, rep); err != nil {
			t.Fatalf("InsertPosition %d: %v", i, err)
		}
	}

	history, err := db.VesselHistory(ctx, "RO-300", 10)
	if err != nil {
		t.Fatalf("VesselHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history rows = %d, want 3", len(history))
	}
	// Newest first.
	if !history[0].RecordedAt.After(history[2].RecordedAt) {
		t.Errorf("history not ordered newest first: %v then %v", history[0].RecordedAt, history[2].RecordedAt)
	}
	if history[0].SignalQuality != models.SignalGood {
		t.Errorf("signal quality = %q, want GOOD", history[0].SignalQuality)
	}
	if history[0].Heading == nil || *history[0].Heading != 108 {
		t.Errorf("heading = %v, want 108", history[0].Heading)
	}
	if history[0].VesselType != "pusher" || history[0].Destination != "Braila" || history[0].ETA != "2026-08-30T18:00:00Z" {
		t.Errorf("voyage fields = %q/%q/%q, not round-tripped",
			history[0].VesselType, history[0].Destination, history[0].ETA)
	}

	n, err := db.CountPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("position count = %d, want 3", n)
	}
}

func TestUpdateLiveStateMonotonic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, _, err := db.FindOrCreateVessel(ctx, models.VesselAttributes{VesselID: "RO-400"}); err != nil {
		t.Fatal(err)
	}

	t2 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t1 := t2.Add(-time.Minute)

	applied, err := db.UpdateLiveState(ctx, "RO-400", models.LiveState{
		Latitude: fp(45.3), Longitude: fp(28.2),
		Status: models.StatusTracked, RecordedAt: t2,
	})
	if err != nil {
		t.Fatalf("UpdateLiveState(t2): %v", err)
	}
	if !applied {
		t.Fatal("fresh update must apply")
	}

	// A late arrival must not regress the live state.
	applied, err = db.UpdateLiveState(ctx, "RO-400", models.LiveState{
		Latitude: fp(44.9), Longitude: fp(27.8),
		Status: models.StatusOutOfRange, RecordedAt: t1,
	})
	if err != nil {
		t.Fatalf("UpdateLiveState(t1): %v", err)
	}
	if applied {
		t.Error("older update must not apply")
	}

	v, err := db.GetVessel(ctx, "RO-400")
	if err != nil {
		t.Fatal(err)
	}
	if v.CurrentLatitude == nil || *v.CurrentLatitude != 45.3 {
		t.Errorf("latitude = %v, want 45.3 from the newer update", v.CurrentLatitude)
	}
	if v.LastUpdateAt == nil || !v.LastUpdateAt.Equal(t2) {
		t.Errorf("last_update_at = %v, want %v", v.LastUpdateAt, t2)
	}
	if v.TrackingStatus != models.StatusTracked {
		t.Errorf("status = %q, want TRACKED from the newer update", v.TrackingStatus)
	}
}

func TestUpdateLiveStateEqualTimestampApplies(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, _, err := db.FindOrCreateVessel(ctx, models.VesselAttributes{VesselID: "RO-401"}); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		applied, err := db.UpdateLiveState(ctx, "RO-401", models.LiveState{
			Status: models.StatusTracked, RecordedAt: at,
		})
		if err != nil {
			t.Fatal(err)
		}
		if !applied {
			t.Errorf("attempt %d: equal timestamp must apply (last write wins)", i)
		}
	}
}

func TestStaleSweepQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-10 * time.Minute)

	seed := func(vesselID string, lastUpdate time.Time, status models.TrackingStatus) {
		t.Helper()
		if _, _, err := db.FindOrCreateVessel(ctx, models.VesselAttributes{VesselID: vesselID}); err != nil {
			t.Fatal(err)
		}
		if _, err := db.UpdateLiveState(ctx, vesselID, models.LiveState{
			Status: status, RecordedAt: lastUpdate,
		}); err != nil {
			t.Fatal(err)
		}
	}

	seed("RO-STALE", now.Add(-time.Hour), models.StatusTracked)
	seed("RO-FRESH", now.Add(-time.Minute), models.StatusTracked)
	seed("RO-GONE", now.Add(-2*time.Hour), models.StatusOffline)

	stale, err := db.StaleVessels(ctx, cutoff)
	if err != nil {
		t.Fatalf("StaleVessels: %v", err)
	}
	if len(stale) != 1 || stale[0].VesselID != "RO-STALE" {
		ids := make([]string, 0, len(stale))
		for _, v := range stale {
			ids = append(ids, v.VesselID)
		}
		t.Fatalf("stale vessels = %v, want [RO-STALE] only", ids)
	}

	t.Run("demotes stale vessel", func(t *testing.T) {
		applied, err := db.MarkNoSignal(ctx, "RO-STALE", cutoff)
		if err != nil {
			t.Fatalf("MarkNoSignal: %v", err)
		}
		if !applied {
			t.Fatal("stale vessel must be demoted")
		}
		v, err := db.GetVessel(ctx, "RO-STALE")
		if err != nil {
			t.Fatal(err)
		}
		if v.TrackingStatus != models.StatusNoSignal {
			t.Errorf("status = %q, want NO_SIGNAL", v.TrackingStatus)
		}
	})

	t.Run("offline vessel untouched", func(t *testing.T) {
		applied, err := db.MarkNoSignal(ctx, "RO-GONE", cutoff)
		if err != nil {
			t.Fatal(err)
		}
		if applied {
			t.Error("OFFLINE vessel must not be demoted")
		}
		v, err := db.GetVessel(ctx, "RO-GONE")
		if err != nil {
			t.Fatal(err)
		}
		if v.TrackingStatus != models.StatusOffline {
			t.Errorf("status = %q, want OFFLINE preserved", v.TrackingStatus)
		}
	})

	t.Run("concurrent fresh write wins over sweep", func(t *testing.T) {
		// The sweep read RO-FRESH as stale moments ago, but a message
		// arrived in between. The re-check must refuse the demotion.
		if _, err := db.UpdateLiveState(ctx, "RO-FRESH", models.LiveState{
			Status: models.StatusTracked, RecordedAt: now,
		}); err != nil {
			t.Fatal(err)
		}
		applied, err := db.MarkNoSignal(ctx, "RO-FRESH", cutoff)
		if err != nil {
			t.Fatal(err)
		}
		if applied {
			t.Error("vessel refreshed after the sweep's read must keep its status")
		}
	})
}

func TestCheckpoint(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Checkpoint(context.Background()); err != nil {
		t.Errorf("Checkpoint: %v", err)
	}
}

func newTestReport(v *models.Vessel, at time.Time) *models.PositionReport {
	return &models.PositionReport{
		ID:            uuid.New(),
		VesselRef:     v.ID,
		VesselID:      v.VesselID,
		Latitude:      fp(45.2),
		Longitude:     fp(28.9),
		Speed:         fp(6.5),
		Course:        fp(112),
		Heading:       fp(108),
		VesselType:    "pusher",
		Destination:   "Braila",
		ETA:           "2026-08-30T18:00:00Z",
		SignalQuality: models.SignalGood,
		DataSource:    models.SourceTerrestrial,
		RecordedAt:    at,
		CreatedAt:     time.Now().UTC(),
	}
}
