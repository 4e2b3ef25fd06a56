// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package sinks holds the best-effort downstream projections of vessel
// state: the search index, the knowledge graph and the analytics provider.
// Sinks are rebuildable from the position history, so every implementation
// here may fail without affecting ingestion.
package sinks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/models"
	"github.com/GYulius/SoWR-sub000/internal/pipeline"
)

// SearchIndex mirrors position history entries into an HTTP search index,
// one document per entry. A circuit breaker shields the consumer from a
// flapping index endpoint.
type SearchIndex struct {
	cfg     config.SearchIndexConfig
	client  *http.Client
	breaker breaker
}

// breaker is the subset of the gobreaker API the sinks use.
type breaker interface {
	Execute(func() (interface{}, error)) (interface{}, error)
}

// positionDocument is the flattened search document for one history entry.
type positionDocument struct {
	ID            string    `json:"id"`
	VesselRef     string    `json:"vessel_ref"`
	VesselID      string    `json:"vessel_id"`
	Name          string    `json:"name,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Speed         *float64  `json:"speed,omitempty"`
	Course        *float64  `json:"course,omitempty"`
	Heading       *float64  `json:"heading,omitempty"`
	VesselType    string    `json:"vessel_type,omitempty"`
	Destination   string    `json:"destination,omitempty"`
	ETA           string    `json:"eta,omitempty"`
	SecondaryID   string    `json:"secondary_id,omitempty"`
	CallSign      string    `json:"call_sign,omitempty"`
	StationRange  *float64  `json:"station_range,omitempty"`
	SignalQuality string    `json:"signal_quality,omitempty"`
	DataSource    string    `json:"data_source,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// NewSearchIndex creates the HTTP search index sink.
func NewSearchIndex(cfg config.SearchIndexConfig) *SearchIndex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SearchIndex{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: pipeline.NewCircuitBreaker(pipeline.DefaultBreakerSettings("search_index")),
	}
}

// IndexPosition stores one history entry as its own document, keyed by the
// entry id. Redelivered entries overwrite themselves; distinct entries for
// the same vessel accumulate, mirroring the append-only history.
func (s *SearchIndex) IndexPosition(ctx context.Context, rep *models.PositionReport) error {
	doc := positionDocument{
		ID:            rep.ID.String(),
		VesselRef:     rep.VesselRef.String(),
		VesselID:      rep.VesselID,
		Name:          rep.Name,
		Latitude:      rep.Latitude,
		Longitude:     rep.Longitude,
		Speed:         rep.Speed,
		Course:        rep.Course,
		Heading:       rep.Heading,
		VesselType:    rep.VesselType,
		Destination:   rep.Destination,
		ETA:           rep.ETA,
		SecondaryID:   rep.SecondaryID,
		CallSign:      rep.CallSign,
		StationRange:  rep.StationRange,
		SignalQuality: string(rep.SignalQuality),
		DataSource:    string(rep.DataSource),
		RecordedAt:    rep.RecordedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal search document: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/documents/%s", s.cfg.URL, s.cfg.IndexName, doc.ID)

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.put(ctx, url, body)
	})
	if err != nil {
		return fmt.Errorf("search index update for %s: %w", rep.VesselID, err)
	}
	return nil
}

func (s *SearchIndex) put(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// NoopSearchIndex discards every document. Used when the sink is disabled.
type NoopSearchIndex struct{}

func (NoopSearchIndex) IndexPosition(context.Context, *models.PositionReport) error { return nil }

// drainAndClose reads the remaining body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
