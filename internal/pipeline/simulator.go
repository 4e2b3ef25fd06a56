// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/logging"
	"github.com/GYulius/SoWR-sub000/internal/models"
	"github.com/GYulius/SoWR-sub000/internal/tracking"
)

// simVessel is one synthetic vessel drifting around its anchor point.
type simVessel struct {
	vesselID string
	name     string
	anchLat  float64
	anchLon  float64
	lat      float64
	lon      float64
	speed    float64
	course   float64
}

// Simulator emits synthetic position reports for a small fleet on a fixed
// interval. Anchors sit on the lower Danube; each tick applies bounded
// jitter so tracks wander but never leave the river region.
type Simulator struct {
	cfg      config.SimulatorConfig
	ingestor *Ingestor
	fleet    []*simVessel
	rng      *rand.Rand
}

// anchor positions for the synthetic fleet, lat/lon pairs.
var simAnchors = [][2]float64{
	{45.2396, 28.8573}, // Sulina branch
	{45.4353, 28.0080}, // Galati
	{45.1667, 28.7833}, // Tulcea
	{44.4268, 26.1025}, // Bucharest reach
	{45.3000, 28.3000}, // Isaccea
}

// NewSimulator creates a simulator with a randomized fleet size between
// FleetMin and FleetMax.
func NewSimulator(cfg config.SimulatorConfig, ingestor *Ingestor) (*Simulator, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor required")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	size := cfg.FleetMin
	if cfg.FleetMax > cfg.FleetMin {
		size += rng.Intn(cfg.FleetMax - cfg.FleetMin + 1)
	}

	fleet := make([]*simVessel, 0, size)
	for i := 0; i < size; i++ {
		anchor := simAnchors[i%len(simAnchors)]
		fleet = append(fleet, &simVessel{
			vesselID: fmt.Sprintf("SIM-%03d", i+1),
			name:     fmt.Sprintf("Simulated Barge %d", i+1),
			anchLat:  anchor[0],
			anchLon:  anchor[1],
			lat:      anchor[0],
			lon:      anchor[1],
			speed:    4 + rng.Float64()*8,
			course:   rng.Float64() * 360,
		})
	}

	return &Simulator{
		cfg:      cfg,
		ingestor: ingestor,
		fleet:    fleet,
		rng:      rng,
	}, nil
}

// FleetSize returns the number of simulated vessels.
func (s *Simulator) FleetSize() int {
	return len(s.fleet)
}

// Run emits one round of positions per interval until the context is
// canceled. An immediate first tick seeds the fleet without waiting.
func (s *Simulator) Run(ctx context.Context) error {
	logging.Info().
		Int("fleet_size", len(s.fleet)).
		Dur("interval", s.cfg.Interval).
		Msg("simulator started")

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("simulator stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Simulator) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, v := range s.fleet {
		msg, ok := s.step(v, now)
		if !ok {
			continue
		}
		if err := s.ingestor.IngestMessage(ctx, msg); err != nil {
			logging.Warn().Err(err).Str("vessel_id", v.vesselID).Msg("simulated position dropped")
		}
	}
}

// step advances one vessel and builds its report. Degenerate draws that would
// put the vessel outside the jitter envelope are skipped for this tick; the
// vessel simply goes quiet, which also exercises the stale sweep downstream.
func (s *Simulator) step(v *simVessel, now time.Time) (*PositionMessage, bool) {
	jitter := s.cfg.MaxJitter

	lat := v.lat + (s.rng.Float64()*2-1)*jitter
	lon := v.lon + (s.rng.Float64()*2-1)*jitter

	// Bounded random walk: reject draws that drift too far from the anchor.
	if abs(lat-v.anchLat) > 10*jitter || abs(lon-v.anchLon) > 10*jitter {
		return nil, false
	}

	v.lat = lat
	v.lon = lon
	v.speed = clamp(v.speed+(s.rng.Float64()*2-1), 0, 25)
	v.course = mod360(v.course + (s.rng.Float64()*20 - 10))

	stationRange := s.rng.Float64() * 80 // occasionally beyond terrestrial range

	msg := NewPositionMessage(AdapterSimulator)
	msg.VesselID = v.vesselID
	msg.Name = v.name
	msg.Latitude = &v.lat
	msg.Longitude = &v.lon
	msg.Speed = &v.speed
	msg.Course = &v.course
	msg.StationRange = &stationRange
	msg.SignalQuality = s.randomQuality()
	msg.DataSource = models.SourceSimulation
	msg.RecordedAt = now

	// Keep the heuristic honest for satellite-range draws.
	if msg.DataSource == "" {
		msg.DataSource = tracking.ClassifySource(msg.StationRange)
	}
	return msg, true
}

// randomQuality skews toward GOOD with occasional degradation, including the
// rare NONE that drives the NO_SIGNAL transition.
func (s *Simulator) randomQuality() models.SignalQuality {
	switch r := s.rng.Float64(); {
	case r < 0.70:
		return models.SignalGood
	case r < 0.85:
		return models.SignalFair
	case r < 0.95:
		return models.SignalPoor
	default:
		return models.SignalNone
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

func mod360(f float64) float64 {
	for f < 0 {
		f += 360
	}
	for f >= 360 {
		f -= 360
	}
	return f
}
