// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/clashops/internal/deck"
)

// ErrNoObservations aborts a refresh that produced no usable deck.
var ErrNoObservations = errors.New("usage: no observations")

// Observation is one player's deck as seen by the crawler.
type Observation struct {
	Deck   string
	SeenAt time.Time
	// Source is informational, e.g. the player tag.
	Source string
}

// Counter is the usage of one canonical deck.
type Counter struct {
	DeckID       int
	CanonicalKey string
	// Cards is the first observed ordering, used for display.
	Cards     []string
	Score     int
	LastEntry time.Time
}

// Snapshot is the result of one aggregation run, sorted by score descending
// with ties in first-seen order.
type Snapshot struct {
	Counters    []Counter
	Observed    int
	Skipped     int
	GeneratedAt time.Time
}

// Aggregator folds observations. It is not safe for concurrent use; the
// crawler hands it a complete batch.
type Aggregator struct {
	expected int
	now      func() time.Time
	log      zerolog.Logger

	byKey map[string]int
	rows  []Counter
	seen  int
	skip  int
}

// NewAggregator returns an aggregator expecting decks of expected cards.
func NewAggregator(expected int, log zerolog.Logger) *Aggregator {
	if expected <= 0 {
		expected = deck.Size
	}
	return &Aggregator{expected: expected, now: time.Now, log: log, byKey: make(map[string]int)}
}

// Add folds one observation. Unusable decks are skipped and logged.
func (a *Aggregator) Add(obs Observation) {
	a.seen++
	canonical, err := deck.CanonicalizeValidated(obs.Deck, a.expected)
	if err != nil {
		a.skip++
		a.log.Debug().Err(err).Str("source", obs.Source).Msg("Skipping observation")
		return
	}

	at := obs.SeenAt
	if at.IsZero() {
		at = a.now()
	}
	key := deck.Fold(canonical)
	if i, ok := a.byKey[key]; ok {
		c := &a.rows[i]
		c.Score++
		if at.After(c.LastEntry) {
			c.LastEntry = at
		}
		return
	}
	a.byKey[key] = len(a.rows)
	a.rows = append(a.rows, Counter{
		DeckID:       len(a.rows) + 1,
		CanonicalKey: canonical,
		Cards:        deck.Members(obs.Deck),
		Score:        1,
		LastEntry:    at,
	})
}

// Snapshot returns the sorted counters folded so far.
func (a *Aggregator) Snapshot() (*Snapshot, error) {
	if len(a.rows) == 0 {
		return nil, ErrNoObservations
	}
	rows := make([]Counter, len(a.rows))
	copy(rows, a.rows)
	for i := range rows {
		rows[i].Cards = append([]string(nil), rows[i].Cards...)
	}
	// rows are in first-seen order already.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })

	return &Snapshot{Counters: rows, Observed: a.seen, Skipped: a.skip, GeneratedAt: a.now()}, nil
}

// Aggregate folds a complete batch.
func Aggregate(observations []Observation, expected int, log zerolog.Logger) (*Snapshot, error) {
	a := NewAggregator(expected, log)
	for _, o := range observations {
		a.Add(o)
	}
	return a.Snapshot()
}
