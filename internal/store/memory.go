// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/clashops/internal/deck"
)

// MemoryStore keeps records in process memory. Scan order is row order.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[string]map[string]*Record
	index  map[string]map[string]string
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:  make(map[string]map[string]*Record),
		index: make(map[string]map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, partition, row string) (rec *Record, err error) {
	defer observe(backendMemory, opGet, time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	r, ok := s.rows[partition][row]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) CreateIfAbsent(_ context.Context, rec *Record) (err error) {
	defer observe(backendMemory, opCreate, time.Now(), &err)

	if err := checkKey(rec.Partition, rec.RowID); err != nil {
		return err
	}
	folded := deck.Fold(rec.CanonicalKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.rows[rec.Partition][rec.RowID]; ok {
		return ErrAlreadyExists
	}
	if folded != "" {
		if _, ok := s.index[rec.Partition][folded]; ok {
			return ErrAlreadyExists
		}
	}

	if s.rows[rec.Partition] == nil {
		s.rows[rec.Partition] = make(map[string]*Record)
		s.index[rec.Partition] = make(map[string]string)
	}
	s.rows[rec.Partition][rec.RowID] = rec.Clone()
	if folded != "" {
		s.index[rec.Partition][folded] = rec.RowID
	}
	return nil
}

func (s *MemoryStore) MergeUpdate(_ context.Context, partition, row string, delta map[string]string) (err error) {
	defer observe(backendMemory, opMerge, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	r, ok := s.rows[partition][row]
	if !ok {
		return ErrNotFound
	}
	for k, v := range delta {
		r.Fields[k] = v
	}
	return nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, partition, row, field, oldValue, newValue string) (swapped bool, err error) {
	defer observe(backendMemory, opSwap, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	r, ok := s.rows[partition][row]
	if !ok {
		return false, ErrNotFound
	}
	if r.Fields[field] != oldValue {
		return false, nil
	}
	r.Fields[field] = newValue
	return true, nil
}

func (s *MemoryStore) LookupCanonical(_ context.Context, partition, foldedKey string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	row, ok := s.index[partition][foldedKey]
	if !ok {
		return nil, ErrNotFound
	}
	return s.rows[partition][row].Clone(), nil
}

func (s *MemoryStore) Scan(ctx context.Context, partition string, fn func(*Record) bool) (err error) {
	defer observe(backendMemory, opScan, time.Now(), &err)

	// Snapshot under the lock so fn may call back into the store.
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	snapshot := make([]*Record, 0, len(s.rows[partition]))
	for _, r := range s.rows[partition] {
		snapshot = append(snapshot, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].RowID < snapshot[j].RowID })
	for _, r := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(r) {
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) DeleteBatch(_ context.Context, partition string, rows []string) (deleted int, err error) {
	defer observe(backendMemory, opDelete, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	var errs []error
	for _, row := range rows {
		if kerr := checkKey(partition, row); kerr != nil {
			errs = append(errs, &RowError{Row: row, Err: kerr})
			continue
		}
		if r, ok := s.rows[partition][row]; ok {
			folded := deck.Fold(r.CanonicalKey)
			if s.index[partition][folded] == row {
				delete(s.index[partition], folded)
			}
			delete(s.rows[partition], row)
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// Len returns the number of rows in partition.
func (s *MemoryStore) Len(partition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[partition])
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
