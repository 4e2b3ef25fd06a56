// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/logging"
)

// OpenFeedPoller polls a public open-data feed of vessel positions. The feed
// needs no credentials but uses looser field naming, which the normalizer's
// candidate-key tables absorb.
type OpenFeedPoller struct {
	cfg      config.OpenFeedConfig
	ingestor *Ingestor
	client   *http.Client
}

// NewOpenFeedPoller creates a poller for the configured feed URL.
func NewOpenFeedPoller(cfg config.OpenFeedConfig, ingestor *Ingestor) (*OpenFeedPoller, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("open feed URL required")
	}
	return &OpenFeedPoller{
		cfg:      cfg,
		ingestor: ingestor,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Run polls until the context is canceled.
func (p *OpenFeedPoller) Run(ctx context.Context) error {
	logging.Info().
		Str("url", p.cfg.URL).
		Dur("interval", p.cfg.Interval).
		Msg("open feed poller started")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("open feed poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				logging.Warn().Err(err).Msg("open feed poll failed")
			}
		}
	}
}

func (p *OpenFeedPoller) poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("open feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read open feed response: %w", err)
	}

	docs, err := splitPositionDocuments(body)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		_ = p.ingestor.Ingest(ctx, AdapterOpenFeed, doc)
	}

	logging.Debug().Int("count", len(docs)).Msg("open feed batch ingested")
	return nil
}
