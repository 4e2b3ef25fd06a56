// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/GYulius/SoWR-sub000/internal/config"
	"github.com/GYulius/SoWR-sub000/internal/metrics"
)

// Router wraps the Watermill router with the middleware stack used for
// position consumption: panic recovery, exponential backoff retry, optional
// throttling, and poison routing for permanent failures.
type Router struct {
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewRouter builds the router and registers the processor handler on the
// positions topic.
//
// Middleware order (outermost first): Recoverer, Retry, Throttle, Poison.
// The poison filter is innermost so a PermanentError goes straight to the
// poison topic without burning retries; transient errors bubble up to Retry
// and, once retries are exhausted, nack for channel-level redelivery.
func NewRouter(
	cfg config.ChannelConfig,
	subscriber *Subscriber,
	poisonPublisher message.Publisher,
	processor *Processor,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(int64(cfg.ThrottlePerSecond), time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if poisonPublisher != nil && cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueueWithFilter(poisonPublisher, cfg.PoisonTopic, func(err error) bool {
			if IsPermanent(err) {
				metrics.PoisonedMessages.Inc()
				return true
			}
			return false
		})
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	wmRouter.AddConsumerHandler(
		"position_processor",
		TopicPositions,
		subscriber.WatermillSubscriber(),
		func(msg *message.Message) error {
			metrics.ConsumedMessages.Inc()
			return processor.HandleMessage(msg)
		},
	)

	return &Router{router: wmRouter, logger: logger}, nil
}

// Run starts the router and blocks until context cancellation or Close.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}
