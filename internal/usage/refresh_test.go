// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/tomtom215/clashops/internal/events"
)

type staticSource struct {
	obs []Observation
	err error
}

func (s staticSource) Observations(context.Context) ([]Observation, error) { return s.obs, s.err }

type capturePublisher struct {
	snaps []*Snapshot
	err   error
}

func (p *capturePublisher) Publish(_ context.Context, s *Snapshot) error {
	if p.err != nil {
		return p.err
	}
	p.snaps = append(p.snaps, s)
	return nil
}

func TestRefreshUsageSnapshot(t *testing.T) {
	pub := &capturePublisher{}
	csvPub := &CSVPublisher{Dir: t.TempDir()}
	rec := events.NewRecorder(4)
	r := NewRefresher(staticSource{obs: sampleObservations()}, 8, testLogger(), rec, pub, csvPub)

	n, err := r.RefreshUsageSnapshot(context.Background())
	if err != nil {
		t.Fatalf("RefreshUsageSnapshot: %v", err)
	}
	if n != 3 || len(pub.snaps) != 1 {
		t.Errorf("published %d decks, %d snapshots", n, len(pub.snaps))
	}
	if _, err := os.Stat(csvPub.Path()); err != nil {
		t.Errorf("csv not written: %v", err)
	}
	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != events.SnapshotPublished || evs[0].Count != 3 {
		t.Errorf("events = %+v", evs)
	}
}

func TestRefreshKeepsPreviousSnapshotOnEmptyRun(t *testing.T) {
	pub := &capturePublisher{}
	r := NewRefresher(staticSource{}, 8, testLogger(), nil, pub)

	if _, err := r.RefreshUsageSnapshot(context.Background()); !errors.Is(err, ErrNoObservations) {
		t.Fatalf("expected ErrNoObservations, got %v", err)
	}
	if len(pub.snaps) != 0 {
		t.Error("empty run must not publish")
	}
}

func TestRefreshSourceAndPublishErrors(t *testing.T) {
	r := NewRefresher(staticSource{err: ErrNoClans}, 8, testLogger(), nil, &capturePublisher{})
	if _, err := r.RefreshUsageSnapshot(context.Background()); !errors.Is(err, ErrNoClans) {
		t.Errorf("source error: %v", err)
	}

	boom := errors.New("disk full")
	next := &capturePublisher{}
	r = NewRefresher(nil, 8, testLogger(), nil, &capturePublisher{err: boom}, next)
	if _, err := r.RefreshFrom(context.Background(), sampleObservations()); !errors.Is(err, boom) {
		t.Errorf("publish error: %v", err)
	}
	if len(next.snaps) != 0 {
		t.Error("publishing continued after a failure")
	}
	if _, err := r.RefreshUsageSnapshot(context.Background()); err == nil {
		t.Error("refresh without a source should fail")
	}
}

func TestRefreshFailureKeepsPreviousArtifact(t *testing.T) {
	ctx := context.Background()
	csvPub := &CSVPublisher{Dir: t.TempDir()}
	previous, err := Aggregate([]Observation{{Deck: baitDeck, SeenAt: t0}}, 8, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := csvPub.Publish(ctx, previous); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(csvPub.Path())
	lastBefore, _ := csvPub.LastRun(ctx)

	// The index goes first; when it fails the CSV is not replaced.
	boom := errors.New("duckdb: out of memory")
	r := NewRefresher(nil, 8, testLogger(), nil, &capturePublisher{err: boom}, csvPub)
	if _, err := r.RefreshFrom(ctx, sampleObservations()); !errors.Is(err, boom) {
		t.Fatalf("RefreshFrom() = %v, want index error", err)
	}

	after, _ := os.ReadFile(csvPub.Path())
	if !bytes.Equal(before, after) {
		t.Error("decks.csv replaced although the index kept the previous snapshot")
	}
	if lastAfter, _ := csvPub.LastRun(ctx); !lastAfter.Equal(lastBefore) {
		t.Errorf("LastRun moved to %v; a failed refresh must stay due", lastAfter)
	}
}

func TestRefreshReportsPartialPublish(t *testing.T) {
	first := &capturePublisher{}
	boom := errors.New("disk full")
	r := NewRefresher(nil, 8, testLogger(), nil, first, &capturePublisher{err: boom})

	_, err := r.RefreshFrom(context.Background(), sampleObservations())
	if !errors.Is(err, boom) || err.Error() != "publish 2/2: disk full" {
		t.Fatalf("RefreshFrom() = %v", err)
	}
	if len(first.snaps) != 1 {
		t.Errorf("first publisher got %d snapshots, want 1", len(first.snaps))
	}
}

func TestRefreshRejectsOverlappingRuns(t *testing.T) {
	r := NewRefresher(nil, 8, testLogger(), nil)
	r.running.Lock()
	defer r.running.Unlock()
	if _, err := r.RefreshFrom(context.Background(), sampleObservations()); !errors.Is(err, ErrRefreshInProgress) {
		t.Errorf("expected ErrRefreshInProgress, got %v", err)
	}
}
