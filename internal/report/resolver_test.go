// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"context"
	"testing"

	"github.com/tomtom215/clashops/internal/store"
)

func TestResolvers(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	seed(t, mem, hogCycle, nil)
	seed(t, mem, logBait, nil)

	resolvers := map[string]Resolver{
		"scan":  NewScanResolver(mem, store.DefaultPartition),
		"index": NewIndexedResolver(mem, store.DefaultPartition),
	}
	queries := []struct {
		raw   string
		want  string
		found bool
	}{
		{hogCycle, hogCycle, true},
		{hogCycleShuffled, hogCycle, true},
		{"goblin gang, ice spirit, the log, rocket, inferno tower, knight, princess, goblin barrel", logBait, true},
		{"Golem, Night Witch, Baby Dragon, Lumberjack, Tornado, Lightning, Barbarian Barrel, Mega Minion", "", false},
		{"", "", false},
	}

	for name, r := range resolvers {
		for _, q := range queries {
			rec, row, found, err := r.FindByIdentity(context.Background(), q.raw)
			if err != nil {
				t.Fatalf("%s %q: %v", name, q.raw, err)
			}
			if found != q.found || row != q.want {
				t.Errorf("%s %q: row=%q found=%v, want %q %v", name, q.raw, row, found, q.want, q.found)
			}
			if found && rec.RowID != row {
				t.Errorf("%s: record row %q != %q", name, rec.RowID, row)
			}
		}
	}
}

func TestNewResolverStrategies(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	plain := mergeOnly{mem}

	if r, err := NewResolver(mem, "", ResolverAuto); err != nil {
		t.Fatal(err)
	} else if _, ok := r.(*IndexedResolver); !ok {
		t.Errorf("auto over indexed store = %T", r)
	}
	if r, err := NewResolver(plain, "", ResolverAuto); err != nil {
		t.Fatal(err)
	} else if _, ok := r.(*ScanResolver); !ok {
		t.Errorf("auto over plain store = %T", r)
	}
	if _, err := NewResolver(plain, "", ResolverIndex); err == nil {
		t.Error("index strategy over plain store should fail")
	}
	if _, err := NewResolver(mem, "", "guess"); err == nil {
		t.Error("unknown strategy should fail")
	}
}

func TestParseFieldAndClass(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Field{"offense": Offense, " OPTIMIZE ": Optimize, "Synergy": Synergy} {
		got, err := ParseField(in)
		if err != nil || got != want {
			t.Errorf("ParseField(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseField("tempo"); err == nil {
		t.Error("expected error for unknown field")
	}
	if ClassOf(Optimize) != ClassLong || ClassOf(Versatility) != ClassShort {
		t.Error("unexpected deadline classes")
	}
	for v, want := range map[string]State{"": Absent, AbsentValue: Absent, PendingValue: Pending, "No": Ready} {
		if got := Classify(v); got != want {
			t.Errorf("Classify(%q) = %s, want %s", v, got, want)
		}
	}
}
