// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T) *DeckIndex {
	t.Helper()
	if testing.Short() {
		t.Skip("DuckDB tests skipped in -short mode")
	}
	x, err := OpenDeckIndex()
	if err != nil {
		t.Fatalf("OpenDeckIndex: %v", err)
	}
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestDeckIndexPublishAndQuery(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()

	if err := x.Publish(ctx, sampleSnapshot(t)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	all, err := x.Top(ctx, Query{})
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(all) != 3 || all[0].DeckID != 1 || all[0].Score != 3 || all[2].DeckID != 3 {
		t.Errorf("Top = %+v", all)
	}
	if all[0].Cards[0] != "Hog Rider" || len(all[0].Cards) != 8 {
		t.Errorf("cards = %v", all[0].Cards)
	}
	if !all[0].LastEntry.Equal(at(5)) {
		t.Errorf("last entry = %s", all[0].LastEntry)
	}

	withLog, err := x.Top(ctx, Query{Card: " the log ", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(withLog) != 2 {
		t.Errorf("decks with The Log = %d, want 2", len(withLog))
	}

	limited, err := x.Top(ctx, Query{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Errorf("limit 1 = %d rows, %v", len(limited), err)
	}

	// Publishing again replaces, never appends.
	if err := x.Publish(ctx, sampleSnapshot(t)); err != nil {
		t.Fatal(err)
	}
	if n, err := x.Count(ctx); err != nil || n != 3 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestDeckIndexLoadCSV(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()
	dir := t.TempDir()

	if n, err := x.LoadCSV(ctx, filepath.Join(dir, "missing.csv")); err != nil || n != 0 {
		t.Fatalf("missing file = %d, %v", n, err)
	}

	p := &CSVPublisher{Dir: dir}
	if err := p.Publish(ctx, sampleSnapshot(t)); err != nil {
		t.Fatal(err)
	}
	n, err := x.LoadCSV(ctx, p.Path())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if n != 3 {
		t.Errorf("loaded %d rows", n)
	}
	rows, err := x.Top(ctx, Query{Card: "golem"})
	if err != nil || len(rows) != 1 || rows[0].DeckID != 3 {
		t.Errorf("golem decks = %+v, %v", rows, err)
	}
}
