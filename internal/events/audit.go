// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/clashops/internal/logging"
)

// Subscriber is the part of Bus the Auditor needs.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// Auditor logs every event on the bus. It implements suture.Service.
type Auditor struct {
	sub    Subscriber
	logger zerolog.Logger
	seen   func(Event)
}

// NewAuditor creates an auditor reading from sub.
func NewAuditor(sub Subscriber) *Auditor {
	return &Auditor{sub: sub, logger: logging.WithComponent("event-audit")}
}

// OnEvent registers a hook called after each event is logged.
func (a *Auditor) OnEvent(fn func(Event)) {
	a.seen = fn
}

// Serve consumes until ctx is cancelled.
func (a *Auditor) Serve(ctx context.Context) error {
	msgs, err := a.sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	a.logger.Info().Msg("Event audit started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Event audit stopped")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("event subscription closed")
			}
			a.handle(msg)
		}
	}
}

func (a *Auditor) handle(msg *message.Message) {
	defer msg.Ack()

	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		a.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("Undecodable event dropped")
		return
	}

	eventsAudited.WithLabelValues(string(ev.Type)).Inc()
	a.logger.Info().
		Str("event", string(ev.Type)).
		Str("event_id", ev.ID).
		Str("row", ev.RowID).
		Str("field", ev.Field).
		Int("count", ev.Count).
		Str("detail", ev.Detail).
		Str("correlation_id", ev.CorrelationID).
		Msg("Domain event")

	if a.seen != nil {
		a.seen(ev)
	}
}

func (a *Auditor) String() string {
	return "event-audit"
}
