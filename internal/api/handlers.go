// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/logging"
	"github.com/GYulius/SoWR-sub000/internal/metrics"
	"github.com/GYulius/SoWR-sub000/internal/pipeline"
)

// maxWebhookBody caps the accepted payload size at 1 MB.
const maxWebhookBody = 1 << 20

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// Ingestor is the ingestion entry point the webhook feeds. *pipeline.Ingestor
// satisfies it.
type Ingestor interface {
	Ingest(ctx context.Context, adapter string, payload []byte) error
}

// HealthStore is the store surface the health endpoint probes.
type HealthStore interface {
	Ping(ctx context.Context) error
	CountVessels(ctx context.Context) (int64, error)
}

// Handler holds the webhook and ops endpoint handlers.
type Handler struct {
	cfg            config.ServerConfig
	ingestor       Ingestor
	store          HealthStore
	webhookEnabled bool
}

// NewHandler creates the handler set. webhookEnabled mirrors whether the
// webhook adapter is part of the ingestion mode.
func NewHandler(cfg config.ServerConfig, webhookEnabled bool, ingestor Ingestor, store HealthStore) *Handler {
	return &Handler{cfg: cfg, ingestor: ingestor, store: store, webhookEnabled: webhookEnabled}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Webhook accepts one raw position payload per request. Ingestion is fire
// and forget: a payload that parses as JSON is acknowledged with 202 even
// when validation later rejects it, so providers cannot probe which vessel
// ids exist.
//
// POST /api/v1/positions/webhook
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.webhookEnabled {
		respondError(w, http.StatusNotFound, "WEBHOOK_DISABLED", "webhook ingestion is not enabled")
		metrics.RecordWebhook(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
		metrics.RecordWebhook(http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	if h.cfg.WebhookSecret != "" {
		signature := r.Header.Get(SignatureHeader)
		if signature == "" {
			respondError(w, http.StatusUnauthorized, "MISSING_SIGNATURE", SignatureHeader+" header required")
			metrics.RecordWebhook(http.StatusUnauthorized)
			return
		}
		if !verifySignature(body, signature, h.cfg.WebhookSecret) {
			respondError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed")
			metrics.RecordWebhook(http.StatusUnauthorized)
			return
		}
	}

	err = h.ingestor.Ingest(r.Context(), pipeline.AdapterWebhook, body)
	var reject *pipeline.RejectError
	switch {
	case err == nil:
		// Accepted.
	case errors.As(err, &reject) && reject.Reason == "parse":
		respondError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "body is not a JSON object")
		metrics.RecordWebhook(http.StatusBadRequest)
		return
	case errors.As(err, &reject):
		// Validation rejections are silent to the caller; the ingestor has
		// already logged and counted them.
	default:
		respondError(w, http.StatusServiceUnavailable, "CHANNEL_UNAVAILABLE", "position could not be queued")
		metrics.RecordWebhook(http.StatusServiceUnavailable)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	metrics.RecordWebhook(http.StatusAccepted)
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status    string    `json:"status"`
	Vessels   int64     `json:"vessels"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports liveness plus a cheap database probe.
//
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logging.Error().Err(err).Msg("health check database ping failed")
		respondJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	vessels, err := h.store.CountVessels(ctx)
	if err != nil {
		vessels = -1
	}

	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Vessels:   vessels,
		Timestamp: time.Now().UTC(),
	})
}

// verifySignature checks the hex HMAC-SHA256 of body in constant time.
func verifySignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Code: code, Message: message})
}
