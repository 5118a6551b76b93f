// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an event.
type Type string

const (
	ReportCreated     Type = "report.created"
	FieldReady        Type = "report.field.ready"
	FieldFailed       Type = "report.field.failed"
	FieldReset        Type = "report.field.reset"
	SnapshotPublished Type = "usage.snapshot.published"
	ReportsPurged     Type = "reports.purged"
)

// Event is the payload published on the bus.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	RowID         string    `json:"row_id,omitempty"`
	Field         string    `json:"field,omitempty"`
	Count         int       `json:"count,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// New stamps an event with an ID and the current time.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Notifier accepts events. Implementations must not block for long and must
// not fail the caller.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Recorder keeps events in memory; useful in tests.
type Recorder struct {
	ch chan Event
}

// NewRecorder buffers up to size events; further events are dropped.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Notify(_ context.Context, ev Event) {
	select {
	case r.ch <- ev:
	default:
	}
}

// Events drains and returns everything recorded so far.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
