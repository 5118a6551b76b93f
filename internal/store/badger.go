// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/logging"
)

// Key layout (\x00 separated):
//
//	rec <partition> <row> ""      -> recordMeta JSON
//	rec <partition> <row> <field> -> raw field value
//	idx <partition> <folded key>  -> row
//
// The meta key is a strict prefix of its field keys, so a prefix scan over a
// partition yields each row's meta followed by that row's fields.
const (
	sep       = "\x00"
	recPrefix = "rec" + sep
	idxPrefix = "idx" + sep
)

// BadgerConfig configures the embedded store.
type BadgerConfig struct {
	Path             string
	InMemory         bool
	SyncWrites       bool
	Compression      bool
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int
	GCRatio          float64
}

// DefaultBadgerConfig returns production defaults.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		Path:             "/data/reports",
		SyncWrites:       true,
		Compression:      true,
		MemTableSize:     64 << 20,
		ValueLogFileSize: 128 << 20,
		NumCompactors:    2,
		GCRatio:          0.5,
	}
}

type recordMeta struct {
	CanonicalKey string    `json:"canonical_key"`
	CreatedAt    time.Time `json:"created_at"`
}

// BadgerStore stores one key per record field in BadgerDB.
type BadgerStore struct {
	db      *badger.DB
	cfg     BadgerConfig
	mu      sync.RWMutex
	closed  bool
	nowFunc func() time.Time
}

// OpenBadger opens (creating if needed) the database at cfg.Path.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumCompactors >= 2 {
		opts.NumCompactors = cfg.NumCompactors
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Report store opened")

	return &BadgerStore{db: db, cfg: cfg, nowFunc: time.Now}, nil
}

func metaKey(partition, row string) []byte {
	return []byte(recPrefix + partition + sep + row + sep)
}

func fieldKey(partition, row, field string) []byte {
	return []byte(recPrefix + partition + sep + row + sep + field)
}

func indexKey(partition, folded string) []byte {
	return []byte(idxPrefix + partition + sep + folded)
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, partition, row string) (rec *Record, err error) {
	defer observe(backendBadger, opGet, time.Now(), &err)

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkKey(partition, row); err != nil {
		return nil, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		var rerr error
		rec, rerr = readRecord(txn, partition, row)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// readRecord loads the meta and every field of one row.
func readRecord(txn *badger.Txn, partition, row string) (*Record, error) {
	prefix := metaKey(partition, row)

	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 8})
	defer it.Close()

	var rec *Record
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		field := string(item.Key()[len(prefix):])
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", item.Key(), err)
		}

		if field == "" {
			var meta recordMeta
			if err := json.Unmarshal(val, &meta); err != nil {
				return nil, fmt.Errorf("decode record meta: %w", err)
			}
			rec = &Record{Partition: partition, RowID: row, CanonicalKey: meta.CanonicalKey, Fields: map[string]string{}}
			continue
		}
		if rec == nil {
			// Orphaned field without meta, left by a partial delete.
			continue
		}
		rec.Fields[field] = string(val)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *BadgerStore) CreateIfAbsent(_ context.Context, rec *Record) (err error) {
	defer observe(backendBadger, opCreate, time.Now(), &err)

	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := checkKey(rec.Partition, rec.RowID); err != nil {
		return err
	}
	for f := range rec.Fields {
		if err := checkKey(f); err != nil {
			return err
		}
	}

	meta, err := json.Marshal(recordMeta{CanonicalKey: rec.CanonicalKey, CreatedAt: s.nowFunc().UTC()})
	if err != nil {
		return fmt.Errorf("encode record meta: %w", err)
	}
	folded := deck.Fold(rec.CanonicalKey)

	err = s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, metaKey(rec.Partition, rec.RowID)); err != nil || exists {
			if err != nil {
				return err
			}
			return ErrAlreadyExists
		}
		if folded != "" {
			if exists, err := keyExists(txn, indexKey(rec.Partition, folded)); err != nil || exists {
				if err != nil {
					return err
				}
				return ErrAlreadyExists
			}
			if err := txn.Set(indexKey(rec.Partition, folded), []byte(rec.RowID)); err != nil {
				return err
			}
		}
		if err := txn.Set(metaKey(rec.Partition, rec.RowID), meta); err != nil {
			return err
		}
		for f, v := range rec.Fields {
			if err := txn.Set(fieldKey(rec.Partition, rec.RowID, f), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent create touched the same meta or index key and won.
		return ErrAlreadyExists
	}
	return err
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *BadgerStore) MergeUpdate(_ context.Context, partition, row string, delta map[string]string) (err error) {
	defer observe(backendBadger, opMerge, time.Now(), &err)

	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := checkKey(partition, row); err != nil {
		return err
	}
	for f := range delta {
		if err := checkKey(f); err != nil {
			return err
		}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, metaKey(partition, row))
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		for f, v := range delta {
			if err := txn.Set(fieldKey(partition, row, f), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CompareAndSwap relies on badger's optimistic transactions: a concurrent
// writer of the same field makes this commit fail with ErrConflict, which is
// reported as a lost swap.
func (s *BadgerStore) CompareAndSwap(_ context.Context, partition, row, field, oldValue, newValue string) (swapped bool, err error) {
	defer observe(backendBadger, opSwap, time.Now(), &err)

	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if err := checkKey(partition, row, field); err != nil {
		return false, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, metaKey(partition, row))
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		var current []byte
		item, err := txn.Get(fieldKey(partition, row, field))
		switch {
		case err == nil:
			if current, err = item.ValueCopy(nil); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if !bytes.Equal(current, []byte(oldValue)) {
			return nil
		}
		if err := txn.Set(fieldKey(partition, row, field), []byte(newValue)); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *BadgerStore) LookupCanonical(_ context.Context, partition, foldedKey string) (rec *Record, err error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkKey(partition, foldedKey); err != nil {
		return nil, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(partition, foldedKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		row, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = readRecord(txn, partition, string(row))
		return err
	})
	return rec, err
}

func (s *BadgerStore) Scan(ctx context.Context, partition string, fn func(*Record) bool) (err error) {
	defer observe(backendBadger, opScan, time.Now(), &err)

	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := checkKey(partition); err != nil {
		return err
	}

	// Records are collected inside the read txn and handed to fn afterwards,
	// so fn may write to the store.
	var records []*Record
	prefix := []byte(recPrefix + partition + sep)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		var cur *Record
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			rest := string(item.Key()[len(prefix):])
			row, field, ok := cutLast(rest)
			if !ok {
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if field == "" {
				var meta recordMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("decode record meta for %q: %w", row, err)
				}
				cur = &Record{Partition: partition, RowID: row, CanonicalKey: meta.CanonicalKey, Fields: map[string]string{}}
				records = append(records, cur)
				continue
			}
			if cur == nil || cur.RowID != row {
				continue
			}
			cur.Fields[field] = string(val)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range records {
		if !fn(r) {
			break
		}
	}
	return nil
}

// cutLast splits "row\x00field" at the last separator. Rows never contain
// NUL (checkKey) and field names never do either.
func cutLast(s string) (row, field string, ok bool) {
	i := len(s) - 1
	for ; i >= 0; i-- {
		if s[i] == 0 {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func (s *BadgerStore) DeleteBatch(ctx context.Context, partition string, rows []string) (deleted int, err error) {
	defer observe(backendBadger, opDelete, time.Now(), &err)

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var errs []error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			errs = append(errs, &RowError{Row: row, Err: err})
			continue
		}
		if err := s.deleteRow(partition, row); err != nil {
			errs = append(errs, &RowError{Row: row, Err: err})
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

func (s *BadgerStore) deleteRow(partition, row string) error {
	if err := checkKey(partition, row); err != nil {
		return err
	}
	prefix := metaKey(partition, row)

	return s.db.Update(func(txn *badger.Txn) error {
		// Collect first, then delete.
		var keys [][]byte
		var canonical string
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if len(item.Key()) == len(prefix) {
				_ = item.Value(func(val []byte) error {
					var meta recordMeta
					if json.Unmarshal(val, &meta) == nil {
						canonical = meta.CanonicalKey
					}
					return nil
				})
			}
			keys = append(keys, item.KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}

		if folded := deck.Fold(canonical); folded != "" {
			item, err := txn.Get(indexKey(partition, folded))
			if err == nil {
				owner, verr := item.ValueCopy(nil)
				if verr != nil {
					return verr
				}
				if string(owner) == row {
					return txn.Delete(indexKey(partition, folded))
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// RunGC runs value log garbage collection until nothing is left to rewrite.
func (s *BadgerStore) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.cfg.InMemory {
		return nil
	}
	ratio := s.cfg.GCRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
	storeGCRuns.Inc()
	return nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Report store closed")
	return nil
}
