// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/GYulius/SoWR-sub000/internal/config"
)

// Channel bundles the publisher/subscriber pair for the selected transport
// mode and owns their lifecycle.
type Channel struct {
	Mode       string
	Publisher  *Publisher
	Subscriber *Subscriber

	embedded *EmbeddedServer
	natsConn *natsgo.Conn
}

// NewChannel builds the message channel for the configured mode.
//
// "embedded" wires the publisher and subscriber to a single in-process
// gochannel pub/sub: no durability, at-most-once across restarts, fine for
// single-node and development deployments.
//
// "nats" starts (or connects to) a JetStream server, ensures the positions
// stream exists, and returns durable publisher/subscriber pairs with
// at-least-once delivery.
func NewChannel(ctx context.Context, cfg config.ChannelConfig, logger watermill.LoggerAdapter) (*Channel, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	switch cfg.Mode {
	case "embedded":
		return newEmbeddedChannel(cfg, logger)
	case "nats":
		return newNATSChannel(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown channel mode %q", cfg.Mode)
	}
}

func newEmbeddedChannel(cfg config.ChannelConfig, logger watermill.LoggerAdapter) (*Channel, error) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          false,
	}, logger)

	pub, err := NewPublisher(pubsub, logger)
	if err != nil {
		return nil, err
	}

	return &Channel{
		Mode:       "embedded",
		Publisher:  pub,
		Subscriber: NewSubscriber(pubsub, logger),
	}, nil
}

func newNATSChannel(ctx context.Context, cfg config.ChannelConfig, logger watermill.LoggerAdapter) (*Channel, error) {
	ch := &Channel{Mode: "nats"}

	natsCfg := cfg.NATS
	if natsCfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		ch.embedded = srv
		natsCfg.URL = srv.ClientURL()
	}

	// Ensure the stream exists before any publisher or subscriber binds to it.
	conn, err := natsgo.Connect(natsCfg.URL, natsgo.Timeout(natsCfg.ConnectTimeout))
	if err != nil {
		ch.closePartial()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	ch.natsConn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		ch.closePartial()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	init, err := NewStreamInitializer(js, StreamSettings{
		Name:          natsCfg.StreamName,
		Subjects:      []string{TopicPositions, TopicVesselEvents, cfg.PoisonTopic},
		RetentionDays: natsCfg.RetentionDays,
		MaxBytes:      natsCfg.MaxStore,
	})
	if err != nil {
		ch.closePartial()
		return nil, err
	}
	if _, err := init.EnsureStream(ctx); err != nil {
		ch.closePartial()
		return nil, err
	}

	pub, err := NewNATSPublisher(natsCfg, logger)
	if err != nil {
		ch.closePartial()
		return nil, err
	}
	ch.Publisher = pub

	sub, err := NewNATSSubscriber(natsCfg, logger)
	if err != nil {
		ch.closePartial()
		return nil, err
	}
	ch.Subscriber = sub

	return ch, nil
}

// EmbeddedNATS returns the embedded server, or nil when not running one.
func (c *Channel) EmbeddedNATS() *EmbeddedServer {
	return c.embedded
}

// Close shuts down the channel: publisher and subscriber first, then the
// helper connection, then the embedded server.
func (c *Channel) Close(ctx context.Context) error {
	var firstErr error

	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Subscriber != nil {
		if err := c.Subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.embedded != nil {
		if err := c.embedded.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Channel) closePartial() {
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.embedded != nil {
		_ = c.embedded.Shutdown(context.Background())
	}
}
