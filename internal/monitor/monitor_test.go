// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/models"
)

type fakeSweepStore struct {
	mu        sync.Mutex
	stale     []*models.Vessel
	listErr   error
	markErr   map[string]error
	fresh     map[string]bool // vessels that got a concurrent update
	demotions []string
}

func (s *fakeSweepStore) StaleVessels(_ context.Context, _ time.Time) ([]*models.Vessel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.stale, nil
}

func (s *fakeSweepStore) MarkNoSignal(_ context.Context, vesselID string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.markErr[vesselID]; err != nil {
		return false, err
	}
	if s.fresh[vesselID] {
		return false, nil
	}
	s.demotions = append(s.demotions, vesselID)
	return true, nil
}

func (s *fakeSweepStore) demoted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.demotions...)
}

func staleVessel(vesselID string) *models.Vessel {
	at := time.Now().Add(-2 * time.Hour).UTC()
	return &models.Vessel{
		VesselID:       vesselID,
		TrackingStatus: models.StatusTracked,
		LastUpdateAt:   &at,
	}
}

func testMonitor(t *testing.T, store Store) *Monitor {
	t.Helper()
	m, err := New(config.MonitorConfig{
		StaleThreshold: 10 * time.Minute,
		SweepInterval:  time.Minute,
	}, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(config.MonitorConfig{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	m, err := New(config.MonitorConfig{}, &fakeSweepStore{})
	if err != nil {
		t.Fatal(err)
	}
	if m.cfg.StaleThreshold <= 0 || m.cfg.SweepInterval <= 0 {
		t.Errorf("defaults not applied: %+v", m.cfg)
	}
}

func TestSweepDemotesStaleVessels(t *testing.T) {
	store := &fakeSweepStore{
		stale: []*models.Vessel{staleVessel("RO-001"), staleVessel("RO-002")},
	}
	m := testMonitor(t, store)

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	demoted := store.demoted()
	if len(demoted) != 2 {
		t.Fatalf("demoted = %v, want both stale vessels", demoted)
	}
}

func TestSweepSkipsConcurrentlyRefreshedVessel(t *testing.T) {
	store := &fakeSweepStore{
		stale: []*models.Vessel{staleVessel("RO-001"), staleVessel("RO-002")},
		fresh: map[string]bool{"RO-002": true},
	}
	m := testMonitor(t, store)

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}

	demoted := store.demoted()
	if len(demoted) != 1 || demoted[0] != "RO-001" {
		t.Errorf("demoted = %v, want only RO-001", demoted)
	}
}

func TestSweepContinuesPastPerVesselErrors(t *testing.T) {
	store := &fakeSweepStore{
		stale:   []*models.Vessel{staleVessel("RO-001"), staleVessel("RO-002")},
		markErr: map[string]error{"RO-001": errors.New("row locked")},
	}
	m := testMonitor(t, store)

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("per-vessel errors must not fail the sweep: %v", err)
	}
	demoted := store.demoted()
	if len(demoted) != 1 || demoted[0] != "RO-002" {
		t.Errorf("demoted = %v, want RO-002 despite the earlier failure", demoted)
	}
}

func TestSweepReturnsListError(t *testing.T) {
	store := &fakeSweepStore{listErr: errors.New("db closed")}
	m := testMonitor(t, store)

	if err := m.Sweep(context.Background()); err == nil {
		t.Error("list failure must surface")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &fakeSweepStore{}
	m := testMonitor(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
