// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package sinks

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/models"
)

// Graph posts vessel identity and latest position as triples to an HTTP
// knowledge-graph endpoint. The processor calls it from a detached goroutine,
// so no circuit breaker is needed here; the per-call timeout bounds the cost
// of a dead endpoint.
type Graph struct {
	cfg    config.GraphConfig
	client *http.Client
}

// triple is one subject/predicate/object statement.
type triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// NewGraph creates the HTTP graph sink.
func NewGraph(cfg config.GraphConfig) *Graph {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Graph{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// UpsertVessel publishes the vessel's identity and latest position.
func (g *Graph) UpsertVessel(ctx context.Context, v *models.Vessel) error {
	subject := "vessel:" + v.VesselID

	triples := []triple{
		{Subject: subject, Predicate: "rdf:type", Object: "sowr:Vessel"},
		{Subject: subject, Predicate: "sowr:trackingStatus", Object: string(v.TrackingStatus)},
	}
	if v.Name != "" {
		triples = append(triples, triple{Subject: subject, Predicate: "sowr:name", Object: v.Name})
	}
	if v.Operator != "" {
		triples = append(triples, triple{Subject: subject, Predicate: "sowr:operator", Object: v.Operator})
	}
	if v.CurrentLatitude != nil && v.CurrentLongitude != nil {
		triples = append(triples,
			triple{Subject: subject, Predicate: "geo:lat", Object: fmt.Sprintf("%.6f", *v.CurrentLatitude)},
			triple{Subject: subject, Predicate: "geo:long", Object: fmt.Sprintf("%.6f", *v.CurrentLongitude)})
	}
	if v.LastUpdateAt != nil {
		triples = append(triples, triple{
			Subject:   subject,
			Predicate: "sowr:lastUpdateAt",
			Object:    v.LastUpdateAt.UTC().Format(time.RFC3339),
		})
	}

	body, err := json.Marshal(triples)
	if err != nil {
		return fmt.Errorf("failed to marshal triples: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL+"/triples", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph upsert for %s: %w", v.VesselID, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("graph upsert for %s: unexpected status %d", v.VesselID, resp.StatusCode)
	}
	return nil
}

// NoopGraph discards every upsert. Used when the sink is disabled.
type NoopGraph struct{}

func (NoopGraph) UpsertVessel(context.Context, *models.Vessel) error { return nil }
