// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/metrics"
)

// ErrRefreshInProgress is returned when a refresh is already running in this
// process.
var ErrRefreshInProgress = errors.New("usage refresh already in progress")

// Refresher runs crawl, aggregate and publish.
type Refresher struct {
	source     Source
	publishers []Publisher
	expected   int
	notifier   events.Notifier
	log        zerolog.Logger

	running sync.Mutex
}

// NewRefresher builds a refresher. Publishers run in order and the first
// failure stops the run, so the durable artifact goes last: it is replaced
// only when every publisher before it took the snapshot. notifier may be nil.
func NewRefresher(source Source, expected int, log zerolog.Logger, notifier events.Notifier, publishers ...Publisher) *Refresher {
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Refresher{source: source, publishers: publishers, expected: expected, notifier: notifier, log: log}
}

// RefreshUsageSnapshot crawls the source and publishes a new snapshot. It
// returns the number of distinct decks published.
func (r *Refresher) RefreshUsageSnapshot(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, errors.New("usage: no observation source configured")
	}
	if !r.running.TryLock() {
		return 0, ErrRefreshInProgress
	}
	defer r.running.Unlock()

	start := time.Now()
	obs, err := r.source.Observations(ctx)
	if err != nil {
		metrics.RecordRefresh(time.Since(start), 0, err)
		return 0, err
	}
	r.log.Info().Int("observations", len(obs)).Dur("took", time.Since(start)).Msg("Crawl finished")
	return r.publish(ctx, obs, start)
}

// RefreshFrom publishes a snapshot built from observations supplied by the
// caller.
func (r *Refresher) RefreshFrom(ctx context.Context, observations []Observation) (int, error) {
	if !r.running.TryLock() {
		return 0, ErrRefreshInProgress
	}
	defer r.running.Unlock()
	return r.publish(ctx, observations, time.Now())
}

func (r *Refresher) publish(ctx context.Context, observations []Observation, start time.Time) (n int, err error) {
	defer func() { metrics.RecordRefresh(time.Since(start), n, err) }()

	snap, err := Aggregate(observations, r.expected, r.log)
	if err != nil {
		r.log.Warn().Int("observations", len(observations)).Msg("No usable decks observed, keeping previous snapshot")
		return 0, err
	}
	for i, p := range r.publishers {
		if err := p.Publish(ctx, snap); err != nil {
			if i > 0 {
				r.log.Warn().Err(err).
					Int("published", i).
					Int("publishers", len(r.publishers)).
					Msg("Snapshot published in part, later publishers keep the previous snapshot")
			}
			return 0, fmt.Errorf("publish %d/%d: %w", i+1, len(r.publishers), err)
		}
	}

	r.log.Info().
		Int("decks", len(snap.Counters)).
		Int("observed", snap.Observed).
		Int("skipped", snap.Skipped).
		Msg("Usage snapshot published")

	ev := events.New(events.SnapshotPublished)
	ev.Count = len(snap.Counters)
	r.notifier.Notify(ctx, ev)
	return len(snap.Counters), nil
}
