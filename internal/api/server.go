// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package api exposes the inbound HTTP surface: the webhook ingestion
// endpoint plus health and metrics routes. There is no REST presentation of
// vessel data; reads happen through the downstream projections.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/logging"
)

// Server is the HTTP server for the webhook and ops endpoints.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	srv     *http.Server
}

// NewServer builds the server and its routes.
func NewServer(cfg config.ServerConfig, handler *Handler) *Server {
	s := &Server{cfg: cfg, handler: handler}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Ops endpoints get a permissive limit so scrapes and probes never
	// starve, the webhook gets the configured per-IP budget.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/healthz", s.handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Group(func(r chi.Router) {
		reqs, window := s.cfg.RateLimitReqs, s.cfg.RateLimitWindow
		if reqs <= 0 {
			reqs = 60
		}
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(reqs, window))
		r.Post("/api/v1/positions/webhook", s.handler.Webhook)
	})

	return r
}

// Routes returns the assembled handler, used by tests.
func (s *Server) Routes() http.Handler {
	return s.srv.Handler
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.srv.Addr).Msg("http server started")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info().Msg("http server stopping")
	return s.srv.Shutdown(ctx)
}
