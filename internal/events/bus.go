// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/clashops/internal/logging"
)

// Transports.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// Config configures the bus.
type Config struct {
	Transport    string
	Topic        string
	NATSURL      string
	EmbeddedNATS bool
	EmbeddedPort int
	Buffer       int64
}

// DefaultConfig returns an in-process bus.
func DefaultConfig() Config {
	return Config{
		Transport:    TransportGoChannel,
		Topic:        "clashops.events",
		EmbeddedPort: -1,
		Buffer:       256,
	}
}

// Bus publishes and subscribes to domain events on a single topic.
type Bus struct {
	topic    string
	pub      message.Publisher
	sub      message.Subscriber
	embedded *EmbeddedServer
	shared   bool // pub and sub are the same gochannel
	log      zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBus builds the configured transport. logger may be nil.
func NewBus(cfg Config, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultConfig().Topic
	}

	b := &Bus{topic: cfg.Topic, log: logging.WithComponent("events")}

	switch cfg.Transport {
	case TransportGoChannel, "":
		gc := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.Buffer}, logger)
		b.pub, b.sub, b.shared = gc, gc, true

	case TransportNATS:
		url := cfg.NATSURL
		if cfg.EmbeddedNATS {
			srv, err := StartEmbeddedServer(cfg.EmbeddedPort)
			if err != nil {
				return nil, err
			}
			b.embedded = srv
			url = srv.ClientURL()
		}
		if url == "" {
			return nil, errors.New("nats transport needs a URL or the embedded server")
		}

		natsOpts := []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
		}
		pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
			URL:         url,
			NatsOptions: natsOpts,
			Marshaler:   &wmNats.NATSMarshaler{},
			JetStream:   wmNats.JetStreamConfig{Disabled: true},
		}, logger)
		if err != nil {
			b.shutdownEmbedded()
			return nil, fmt.Errorf("create nats publisher: %w", err)
		}
		sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
			URL:              url,
			QueueGroupPrefix: "clashops",
			SubscribersCount: 1,
			CloseTimeout:     5 * time.Second,
			AckWaitTimeout:   30 * time.Second,
			NatsOptions:      natsOpts,
			Unmarshaler:      &wmNats.NATSMarshaler{},
			JetStream:        wmNats.JetStreamConfig{Disabled: true},
		}, logger)
		if err != nil {
			_ = pub.Close()
			b.shutdownEmbedded()
			return nil, fmt.Errorf("create nats subscriber: %w", err)
		}
		b.pub, b.sub = pub, sub

	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}

	return b, nil
}

// Notify publishes ev. Failures are logged and counted only.
func (b *Bus) Notify(ctx context.Context, ev Event) {
	if err := b.Publish(ctx, ev); err != nil {
		eventsPublishFailures.WithLabelValues(string(ev.Type)).Inc()
		b.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Event publish failed")
	}
}

// Publish sends ev and reports transport errors.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("event bus is closed")
	}

	if ev.ID == "" {
		ev.ID = watermill.NewUUID()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = logging.CorrelationIDFromContext(ctx)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("type", string(ev.Type))
	msg.SetContext(ctx)

	if err := b.pub.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	eventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// Subscribe returns the message stream for the bus topic.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.sub.Subscribe(ctx, b.topic)
}

// Close shuts down publisher, subscriber and the embedded server.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	var errs []error
	if err := b.pub.Close(); err != nil {
		errs = append(errs, err)
	}
	if !b.shared {
		if err := b.sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.shutdownEmbedded()
	return errors.Join(errs...)
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
}
