// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
)

// DefaultPartition is the partition every report lives in.
const DefaultPartition = "Default"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned by CreateIfAbsent when the row, or another
	// row with the same canonical key, already exists.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidKey is returned for partitions, rows or fields that cannot be
	// encoded by the backend.
	ErrInvalidKey = errors.New("invalid record key")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Record is one report row. Fields maps a category name to its stored value.
type Record struct {
	Partition    string
	RowID        string
	CanonicalKey string
	Fields       map[string]string
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = maps.Clone(r.Fields)
	if c.Fields == nil {
		c.Fields = map[string]string{}
	}
	return &c
}

// Store is the record store contract used by the report engine.
type Store interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, partition, row string) (*Record, error)

	// CreateIfAbsent inserts rec or returns ErrAlreadyExists.
	CreateIfAbsent(ctx context.Context, rec *Record) error

	// MergeUpdate writes only the fields in delta. ErrNotFound if the row
	// does not exist; it never creates a row.
	MergeUpdate(ctx context.Context, partition, row string, delta map[string]string) error

	// Scan calls fn for every record in partition until fn returns false.
	Scan(ctx context.Context, partition string, fn func(*Record) bool) error

	// DeleteBatch deletes rows and returns how many were deleted. Per-row
	// failures are joined into the returned error as *RowError values.
	// Deleting a row that does not exist counts as success.
	DeleteBatch(ctx context.Context, partition string, rows []string) (int, error)
}

// Swapper is implemented by stores that can write one field conditionally.
type Swapper interface {
	// CompareAndSwap sets field to newValue only if it currently holds
	// oldValue. It reports whether the write happened.
	CompareAndSwap(ctx context.Context, partition, row, field, oldValue, newValue string) (bool, error)
}

// Indexer is implemented by stores that keep a canonical key index.
type Indexer interface {
	// LookupCanonical returns the record whose folded canonical key equals
	// foldedKey, or ErrNotFound.
	LookupCanonical(ctx context.Context, partition, foldedKey string) (*Record, error)
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	io.Closer
}

// RowError is a per-row delete failure.
type RowError struct {
	Row string
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %q: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// RowErrors extracts every *RowError joined into err.
func RowErrors(err error) []*RowError {
	if err == nil {
		return nil
	}
	var out []*RowError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, RowErrors(e)...)
		}
		return out
	}
	var re *RowError
	if errors.As(err, &re) {
		out = append(out, re)
	}
	return out
}

// checkKey rejects key parts containing NUL, which the badger encoding uses
// as a separator.
func checkKey(parts ...string) error {
	for _, p := range parts {
		if p == "" || strings.ContainsRune(p, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, p)
		}
	}
	return nil
}
