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

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/logging"
)

// ProviderPoller polls the commercial position provider on a fixed interval.
// Requests pass through a rate limiter so short configuration mistakes cannot
// hammer a metered API.
type ProviderPoller struct {
	cfg      config.ProviderConfig
	ingestor *Ingestor
	client   *http.Client
	limiter  *rate.Limiter
}

// NewProviderPoller creates a poller for the configured provider endpoint.
func NewProviderPoller(cfg config.ProviderConfig, ingestor *Ingestor) (*ProviderPoller, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL required")
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &ProviderPoller{
		cfg:      cfg,
		ingestor: ingestor,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

// Run polls until the context is canceled. Poll failures are logged and the
// next tick retries; a missed poll loses nothing because vessels keep
// reporting.
func (p *ProviderPoller) Run(ctx context.Context) error {
	logging.Info().
		Str("base_url", p.cfg.BaseURL).
		Dur("interval", p.cfg.Interval).
		Msg("provider poller started")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("provider poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				logging.Warn().Err(err).Msg("provider poll failed")
			}
		}
	}
}

func (p *ProviderPoller) poll(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/positions", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	docs, err := splitPositionDocuments(body)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		// Reject errors are already counted inside Ingest; keep going so one
		// bad record cannot sink the batch.
		_ = p.ingestor.Ingest(ctx, AdapterProvider, doc)
	}

	logging.Debug().Int("count", len(docs)).Msg("provider batch ingested")
	return nil
}

// splitPositionDocuments accepts the three response shapes seen in the wild:
// a bare array, an object with a "positions" array, or a single object.
func splitPositionDocuments(body []byte) ([][]byte, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil {
		docs := make([][]byte, len(arr))
		for i, raw := range arr {
			docs[i] = raw
		}
		return docs, nil
	}

	var wrapper struct {
		Positions []json.RawMessage `json:"positions"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Positions) > 0 {
		docs := make([][]byte, len(wrapper.Positions))
		for i, raw := range wrapper.Positions {
			docs[i] = raw
		}
		return docs, nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err == nil && len(obj) > 0 {
		return [][]byte{body}, nil
	}

	return nil, fmt.Errorf("unrecognized provider response shape")
}
