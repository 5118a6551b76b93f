// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// newRecord builds a record with every field absent ("no").
func newRecord(row, canonical string) *Record {
	return &Record{
		Partition:    DefaultPartition,
		RowID:        row,
		CanonicalKey: canonical,
		Fields: map[string]string{
			"Offense":  "no",
			"Defense":  "no",
			"Optimize": "no",
		},
	}
}

// runConformance exercises the Store contract against a fresh backend from
// open for every subtest.
func runConformance(t *testing.T, open func(t *testing.T) Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		if _, err := s.Get(ctx, DefaultPartition, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create then get", func(t *testing.T) {
		s := open(t)
		if err := s.CreateIfAbsent(ctx, newRecord("B,A", "A,B")); err != nil {
			t.Fatalf("create: %v", err)
		}
		rec, err := s.Get(ctx, DefaultPartition, "B,A")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if rec.RowID != "B,A" || rec.CanonicalKey != "A,B" {
			t.Errorf("identity = %q/%q", rec.RowID, rec.CanonicalKey)
		}
		if rec.Fields["Offense"] != "no" || len(rec.Fields) != 3 {
			t.Errorf("fields = %v", rec.Fields)
		}
	})

	t.Run("duplicate row", func(t *testing.T) {
		s := open(t)
		if err := s.CreateIfAbsent(ctx, newRecord("B,A", "A,B")); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.CreateIfAbsent(ctx, newRecord("B,A", "A,B")); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("duplicate canonical key", func(t *testing.T) {
		s := open(t)
		if err := s.CreateIfAbsent(ctx, newRecord("B,A", "A,B")); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.CreateIfAbsent(ctx, newRecord("a,b", "a,b")); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists for case-folded duplicate, got %v", err)
		}
	})

	t.Run("merge keeps siblings", func(t *testing.T) {
		s := open(t)
		if err := s.CreateIfAbsent(ctx, newRecord("B,A", "A,B")); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.MergeUpdate(ctx, DefaultPartition, "B,A", map[string]string{"Offense": "loading"}); err != nil {
			t.Fatalf("merge: %v", err)
		}
		if err := s.MergeUpdate(ctx, DefaultPartition, "B,A", map[string]string{"Defense": "solid"}); err != nil {
			t.Fatalf("merge: %v", err)
		}
		rec, err := s.Get(ctx, DefaultPartition, "B,A")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if rec.Fields["Offense"] != "loading" || rec.Fields["Defense"] != "solid" || rec.Fields["Optimize"] != "no" {
			t.Errorf("fields = %v", rec.Fields)
		}
	})

	t.Run("merge missing row", func(t *testing.T) {
		s := open(t)
		err := s.MergeUpdate(ctx, DefaultPartition, "ghost", map[string]string{"Offense": "x"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.Get(ctx, DefaultPartition, "ghost"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("merge must not create rows, got %v", err)
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		s := open(t)
		sw, ok := s.(Swapper)
		if !ok {
			t.Skip("backend does not implement Swapper")
		}
		if err := s.CreateIfAbsent(ctx, newRecord("B,A", "A,B")); err != nil {
			t.Fatalf("create: %v", err)
		}
		swapped, err := sw.CompareAndSwap(ctx, DefaultPartition, "B,A", "Offense", "no", "loading")
		if err != nil || !swapped {
			t.Fatalf("first swap = %v, %v", swapped, err)
		}
		swapped, err = sw.CompareAndSwap(ctx, DefaultPartition, "B,A", "Offense", "no", "loading")
		if err != nil || swapped {
			t.Fatalf("second swap = %v, %v", swapped, err)
		}
		if _, err := sw.CompareAndSwap(ctx, DefaultPartition, "ghost", "Offense", "no", "x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("lookup canonical", func(t *testing.T) {
		s := open(t)
		ix, ok := s.(Indexer)
		if !ok {
			t.Skip("backend does not implement Indexer")
		}
		if err := s.CreateIfAbsent(ctx, newRecord("Zap,Hog", "Hog,Zap")); err != nil {
			t.Fatalf("create: %v", err)
		}
		rec, err := ix.LookupCanonical(ctx, DefaultPartition, "hog,zap")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if rec.RowID != "Zap,Hog" {
			t.Errorf("row = %q", rec.RowID)
		}
		if _, err := ix.LookupCanonical(ctx, DefaultPartition, "miner,zap"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("scan and early stop", func(t *testing.T) {
		s := open(t)
		for i := 0; i < 5; i++ {
			row := fmt.Sprintf("row-%d", i)
			if err := s.CreateIfAbsent(ctx, newRecord(row, row)); err != nil {
				t.Fatalf("create %s: %v", row, err)
			}
		}
		var all []string
		if err := s.Scan(ctx, DefaultPartition, func(r *Record) bool {
			all = append(all, r.RowID)
			if len(r.Fields) != 3 {
				t.Errorf("row %s has fields %v", r.RowID, r.Fields)
			}
			return true
		}); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("scanned %d rows, want 5", len(all))
		}

		n := 0
		_ = s.Scan(ctx, DefaultPartition, func(*Record) bool { n++; return n < 2 })
		if n != 2 {
			t.Errorf("early stop visited %d rows, want 2", n)
		}
	})

	t.Run("delete batch idempotent", func(t *testing.T) {
		s := open(t)
		for _, row := range []string{"a", "b", "c"} {
			if err := s.CreateIfAbsent(ctx, newRecord(row, row)); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		n, err := s.DeleteBatch(ctx, DefaultPartition, []string{"a", "b", "c"})
		if err != nil || n != 3 {
			t.Fatalf("delete = %d, %v", n, err)
		}
		if _, err := s.Get(ctx, DefaultPartition, "b"); !errors.Is(err, ErrNotFound) {
			t.Errorf("b still present: %v", err)
		}
		// The canonical key is free again.
		if err := s.CreateIfAbsent(ctx, newRecord("a", "a")); err != nil {
			t.Errorf("recreate after delete: %v", err)
		}
	})

	t.Run("concurrent sibling merges", func(t *testing.T) {
		s := open(t)
		if err := s.CreateIfAbsent(ctx, newRecord("B,A", "A,B")); err != nil {
			t.Fatalf("create: %v", err)
		}
		var wg sync.WaitGroup
		for _, f := range []string{"Offense", "Defense", "Optimize"} {
			wg.Add(1)
			go func(field string) {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					if err := s.MergeUpdate(ctx, DefaultPartition, "B,A", map[string]string{field: fmt.Sprintf("%s-%d", field, i)}); err != nil {
						t.Errorf("merge %s: %v", field, err)
						return
					}
				}
			}(f)
		}
		wg.Wait()

		rec, err := s.Get(ctx, DefaultPartition, "B,A")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		for _, f := range []string{"Offense", "Defense", "Optimize"} {
			if want := f + "-19"; rec.Fields[f] != want {
				t.Errorf("%s = %q, want %q", f, rec.Fields[f], want)
			}
		}
	})
}

func TestMemoryStoreConformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Backend {
		s := NewMemoryStore()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRowErrors(t *testing.T) {
	t.Parallel()

	base := errors.New("disk full")
	joined := errors.Join(&RowError{Row: "a", Err: base}, &RowError{Row: "b", Err: base})
	got := RowErrors(joined)
	if len(got) != 2 || got[0].Row != "a" || got[1].Row != "b" {
		t.Fatalf("RowErrors = %v", got)
	}
	if !errors.Is(got[0], base) {
		t.Error("RowError should unwrap to the cause")
	}
	if RowErrors(nil) != nil {
		t.Error("nil error should yield no row errors")
	}
}

func TestRecordClone(t *testing.T) {
	t.Parallel()

	r := newRecord("a", "a")
	c := r.Clone()
	c.Fields["Offense"] = "changed"
	if r.Fields["Offense"] != "no" {
		t.Error("Clone shares the field map")
	}
	var nilRec *Record
	if nilRec.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
