// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/GYulius/SoWR-sub000/internal/logging"
)

// RunLoopService adapts a Run(ctx) loop (simulator, pollers, router, stale
// monitor) to the suture.Service interface. A context.Canceled return is
// translated to suture's normal-termination sentinel so shutdown is not
// logged as a failure.
type RunLoopService struct {
	name string
	run  func(ctx context.Context) error
}

// NewRunLoopService wraps a run loop as a supervised service.
func NewRunLoopService(name string, run func(ctx context.Context) error) *RunLoopService {
	return &RunLoopService{name: name, run: run}
}

// Serve implements suture.Service.
func (s *RunLoopService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if errors.Is(err, context.Canceled) {
		return suture.ErrDoNotRestart
	}
	if err != nil {
		logging.Error().Err(err).Str("service", s.name).Msg("service exited with error")
	}
	return err
}

// String names the service in suture's event log.
func (s *RunLoopService) String() string { return s.name }

// HTTPServer is the lifecycle surface of internal/api.Server.
type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService supervises a blocking HTTP server, translating context
// cancellation into a graceful shutdown with a drain deadline.
type HTTPServerService struct {
	name    string
	server  HTTPServer
	timeout time.Duration
}

// NewHTTPServerService wraps the HTTP server as a supervised service.
func NewHTTPServerService(name string, server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{name: name, server: server, timeout: shutdownTimeout}
}

// Serve implements suture.Service. Start blocks, so shutdown runs from the
// context watcher goroutine.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.server.Start() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Str("service", s.name).Msg("http shutdown incomplete")
		}
		<-done
		return suture.ErrDoNotRestart
	}
}

// String names the service in suture's event log.
func (s *HTTPServerService) String() string { return s.name }
