// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/store"
)

type recordingAnalyzer struct {
	mu   sync.Mutex
	reqs []Request
	err  error
}

func (a *recordingAnalyzer) Analyze(_ context.Context, req Request) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reqs = append(a.reqs, req)
	if a.err != nil {
		return "", a.err
	}
	return "analysis of " + string(req.Field), nil
}

func newTestService(t *testing.T, st store.Store, strategy string, analyzer Analyzer, n events.Notifier) *Service {
	t.Helper()
	res, err := NewResolver(st, store.DefaultPartition, strategy)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	engine := NewEngine(st, testEngineConfig(), n)
	return NewService(st, res, engine, analyzer, ServiceConfig{}, n)
}

func TestCreateRecord(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	rec := events.NewRecorder(4)
	svc := newTestService(t, mem, ResolverAuto, &recordingAnalyzer{}, rec)

	res, err := svc.CreateRecord(context.Background(), "  "+hogCycle+" ")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if res.Status != Created || res.RowID != hogCycle {
		t.Errorf("result = %+v", res)
	}
	if res.CanonicalKey != deck.Canonicalize(hogCycle) {
		t.Errorf("canonical = %q", res.CanonicalKey)
	}

	for _, f := range Fields {
		if v := fieldValue(t, mem, hogCycle, f); v != AbsentValue {
			t.Errorf("%s = %q, want %q", f, v, AbsentValue)
		}
	}
	if evs := rec.Events(); len(evs) != 1 || evs[0].Type != events.ReportCreated {
		t.Errorf("events = %+v", evs)
	}
}

func TestCreateRecordDuplicateReturnsOriginalRow(t *testing.T) {
	t.Parallel()

	for _, strategy := range []string{ResolverScan, ResolverIndex} {
		t.Run(strategy, func(t *testing.T) {
			t.Parallel()

			mem := store.NewMemoryStore()
			svc := newTestService(t, mem, strategy, &recordingAnalyzer{}, nil)

			if _, err := svc.CreateRecord(context.Background(), hogCycle); err != nil {
				t.Fatalf("first create: %v", err)
			}
			res, err := svc.CreateRecord(context.Background(), hogCycleShuffled)
			if err != nil {
				t.Fatalf("second create: %v", err)
			}
			if res.Status != AlreadyExists || res.RowID != hogCycle {
				t.Errorf("result = %+v", res)
			}
			if mem.Len(store.DefaultPartition) != 1 {
				t.Errorf("store has %d records", mem.Len(store.DefaultPartition))
			}
		})
	}
}

func TestCreateRecordConcurrentSameDeck(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, ResolverAuto, &recordingAnalyzer{}, nil)

	variants := []string{hogCycle, hogCycleShuffled, strings.ToUpper(hogCycle), strings.ToLower(hogCycleShuffled)}
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for _, raw := range variants {
		wg.Add(1)
		go func(raw string) {
			defer wg.Done()
			res, err := svc.CreateRecord(context.Background(), raw)
			if err != nil {
				t.Errorf("CreateRecord(%q): %v", raw, err)
				return
			}
			if res.Status == Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(raw)
	}
	wg.Wait()

	if created != 1 || mem.Len(store.DefaultPartition) != 1 {
		t.Errorf("created %d, stored %d; want exactly one", created, mem.Len(store.DefaultPartition))
	}
}

func TestCreateRecordValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, store.NewMemoryStore(), ResolverAuto, &recordingAnalyzer{}, nil)
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", deck.ErrEmptyIdentity},
		{"only separators", " , ,[ ] ", deck.ErrEmptyIdentity},
		{"too few", "Hog Rider, Musketeer", deck.ErrWrongMemberCount},
		{"too many", hogCycle + ", Zap", deck.ErrWrongMemberCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRecord(context.Background(), tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var ve *deck.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *deck.ValidationError, got %T", err)
			}
		})
	}
}

func TestResolveFieldThroughService(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	seed(t, mem, hogCycle, map[string]string{"Offense": "pressure both lanes", "Defense": PendingValue})
	an := &recordingAnalyzer{}
	svc := newTestService(t, mem, ResolverAuto, an, nil)

	got, err := svc.ResolveField(context.Background(), hogCycleShuffled, Synergy)
	if err != nil {
		t.Fatalf("ResolveField: %v", err)
	}
	if got != "analysis of Synergy" {
		t.Errorf("got %q", got)
	}

	if len(an.reqs) != 1 {
		t.Fatalf("analyzer called %d times", len(an.reqs))
	}
	req := an.reqs[0]
	if req.RowID != hogCycle || len(req.Cards) != deck.Size || req.Cards[0] != "Hog Rider" {
		t.Errorf("request = %+v", req)
	}
	if len(req.Siblings) != 1 || req.Siblings[Offense] != "pressure both lanes" {
		t.Errorf("siblings = %v", req.Siblings)
	}

	// Second call is served from the store.
	if _, err := svc.ResolveField(context.Background(), hogCycle, Synergy); err != nil {
		t.Fatal(err)
	}
	if len(an.reqs) != 1 {
		t.Errorf("analyzer called again on a cache hit")
	}
}

func TestResolveFieldErrors(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	seed(t, mem, hogCycle, nil)
	an := &recordingAnalyzer{err: errors.New("upstream 500")}
	svc := newTestService(t, mem, ResolverAuto, an, nil)
	ctx := context.Background()

	if _, err := svc.ResolveField(ctx, logBait, Offense); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown deck: %v", err)
	}
	if _, err := svc.ResolveField(ctx, hogCycle, Field("Tempo")); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field: %v", err)
	}
	if _, err := svc.ResolveField(ctx, "Hog Rider", Offense); !errors.Is(err, deck.ErrWrongMemberCount) {
		t.Errorf("bad deck: %v", err)
	}

	_, err := svc.ResolveField(ctx, hogCycle, Offense)
	var ce *ComputeError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ComputeError, got %v", err)
	}
	if v := fieldValue(t, mem, hogCycle, Offense); v != AbsentValue {
		t.Errorf("field after failure = %q", v)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	seed(t, mem, hogCycle, map[string]string{"Offense": "text", "Defense": PendingValue})
	svc := newTestService(t, mem, ResolverAuto, &recordingAnalyzer{}, nil)

	v, err := svc.Lookup(context.Background(), hogCycleShuffled)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if v.RowID != hogCycle {
		t.Errorf("row = %q", v.RowID)
	}
	want := map[Field]State{Offense: Ready, Defense: Pending, Synergy: Absent, Versatility: Absent, Optimize: Absent}
	for f, s := range want {
		if v.States[f] != s {
			t.Errorf("%s state = %s, want %s", f, v.States[f], s)
		}
	}
	if len(v.Values) != 1 || v.Values[Offense] != "text" {
		t.Errorf("values = %v", v.Values)
	}

	if _, err := svc.Lookup(context.Background(), logBait); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing deck: %v", err)
	}
}

func TestForceReset(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	seed(t, mem, hogCycle, map[string]string{"Optimize": PendingValue})
	svc := newTestService(t, mem, ResolverAuto, &recordingAnalyzer{}, nil)

	prev, err := svc.ForceReset(context.Background(), hogCycleShuffled, Optimize)
	if err != nil || prev != Pending {
		t.Fatalf("ForceReset = %s, %v", prev, err)
	}
	if v := fieldValue(t, mem, hogCycle, Optimize); v != AbsentValue {
		t.Errorf("Optimize = %q", v)
	}
	if _, err := svc.ForceReset(context.Background(), logBait, Optimize); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing deck: %v", err)
	}
}
