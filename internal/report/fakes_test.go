// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/store"
)

// hogCycle is a valid 8-card deck; hogCycleShuffled is the same cards in a
// different order and case.
const (
	hogCycle         = "[Hog Rider, Musketeer, Ice Spirit, Skeletons, Cannon, Fireball, The Log, Ice Golem]"
	hogCycleShuffled = "the log, ICE GOLEM, Cannon, Fireball, Skeletons, Ice Spirit, Musketeer, Hog Rider"
	logBait          = "Goblin Barrel, Princess, Knight, Inferno Tower, Rocket, The Log, Ice Spirit, Goblin Gang"
)

// mergeOnly hides the optional Swapper and Indexer interfaces of the
// wrapped store, leaving the plain last-writer-wins contract.
type mergeOnly struct {
	store.Store
}

// tracingStore records every value written to any field, in order.
type tracingStore struct {
	store.Store
	mu     sync.Mutex
	writes []string
}

func (s *tracingStore) MergeUpdate(ctx context.Context, partition, row string, delta map[string]string) error {
	err := s.Store.MergeUpdate(ctx, partition, row, delta)
	if err == nil {
		s.mu.Lock()
		for _, v := range delta {
			s.writes = append(s.writes, v)
		}
		s.mu.Unlock()
	}
	return err
}

func (s *tracingStore) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// swapTracingStore adds a traced CompareAndSwap to tracingStore.
type swapTracingStore struct {
	*tracingStore
	sw store.Swapper
}

func newSwapTracingStore(mem *store.MemoryStore) *swapTracingStore {
	return &swapTracingStore{tracingStore: &tracingStore{Store: mem}, sw: mem}
}

func (s *swapTracingStore) CompareAndSwap(ctx context.Context, partition, row, field, oldValue, newValue string) (bool, error) {
	swapped, err := s.sw.CompareAndSwap(ctx, partition, row, field, oldValue, newValue)
	if swapped {
		s.mu.Lock()
		s.writes = append(s.writes, newValue)
		s.mu.Unlock()
	}
	return swapped, err
}

// failingStore fails Get with err after failAfter successful calls.
type failingStore struct {
	store.Store
	mu        sync.Mutex
	calls     int
	failAfter int
	err       error
}

func (s *failingStore) Get(ctx context.Context, partition, row string) (*store.Record, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls > s.failAfter
	s.mu.Unlock()
	if fail {
		return nil, s.err
	}
	return s.Store.Get(ctx, partition, row)
}

// testEngineConfig uses millisecond timings.
func testEngineConfig() EngineConfig {
	return EngineConfig{
		Partition:         store.DefaultPartition,
		PollInterval:      5 * time.Millisecond,
		ShortDeadline:     150 * time.Millisecond,
		LongDeadline:      400 * time.Millisecond,
		ConditionalWrites: true,
		LocalCoalescing:   false,
	}
}

// seed creates a record for raw with the given field overrides.
func seed(t *testing.T, st store.Store, raw string, fields map[string]string) string {
	t.Helper()

	row := strings.TrimSpace(raw)
	init := InitialFields()
	for k, v := range fields {
		init[k] = v
	}
	err := st.CreateIfAbsent(context.Background(), &store.Record{
		Partition:    store.DefaultPartition,
		RowID:        row,
		CanonicalKey: deck.Canonicalize(row),
		Fields:       init,
	})
	if err != nil {
		t.Fatalf("seed %q: %v", row, err)
	}
	return row
}

func fieldValue(t *testing.T, st store.Store, row string, f Field) string {
	t.Helper()
	rec, err := st.Get(context.Background(), store.DefaultPartition, row)
	if err != nil {
		t.Fatalf("get %q: %v", row, err)
	}
	return rec.Fields[string(f)]
}
