// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"context"
	"errors"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/store"
)

// Resolver finds the record for a raw deck, whatever order its cards are in.
type Resolver interface {
	// FindByIdentity returns the matching record and its original row ID.
	// found is false when no record matches; that is not an error.
	FindByIdentity(ctx context.Context, raw string) (rec *store.Record, rowID string, found bool, err error)
}

// ScanResolver compares the canonical form of every row in the partition.
// Cost is linear in the number of records.
type ScanResolver struct {
	store     store.Store
	partition string
}

// NewScanResolver returns a resolver over partition.
func NewScanResolver(st store.Store, partition string) *ScanResolver {
	return &ScanResolver{store: st, partition: partition}
}

func (r *ScanResolver) FindByIdentity(ctx context.Context, raw string) (*store.Record, string, bool, error) {
	target := deck.Fold(deck.Canonicalize(raw))
	if target == "" {
		return nil, "", false, nil
	}

	var match *store.Record
	err := r.store.Scan(ctx, r.partition, func(rec *store.Record) bool {
		// The row ID is authoritative; the stored canonical key is a
		// convenience copy.
		if deck.Fold(deck.Canonicalize(rec.RowID)) == target {
			match = rec
			return false
		}
		return true
	})
	if err != nil {
		return nil, "", false, &StoreError{Op: "scan", Err: err}
	}
	if match == nil {
		return nil, "", false, nil
	}
	return match, match.RowID, true, nil
}

// IndexedResolver uses the store's canonical key index.
type IndexedResolver struct {
	index     store.Indexer
	partition string
}

// NewIndexedResolver returns a resolver backed by ix.
func NewIndexedResolver(ix store.Indexer, partition string) *IndexedResolver {
	return &IndexedResolver{index: ix, partition: partition}
}

func (r *IndexedResolver) FindByIdentity(ctx context.Context, raw string) (*store.Record, string, bool, error) {
	target := deck.Fold(deck.Canonicalize(raw))
	if target == "" {
		return nil, "", false, nil
	}
	rec, err := r.index.LookupCanonical(ctx, r.partition, target)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, &StoreError{Op: "lookup", Err: err}
	}
	return rec, rec.RowID, true, nil
}

// Resolver strategies accepted by NewResolver.
const (
	ResolverAuto  = "auto"
	ResolverScan  = "scan"
	ResolverIndex = "index"
)

// NewResolver picks a resolver for st. "auto" uses the index when the store
// has one.
func NewResolver(st store.Store, partition, strategy string) (Resolver, error) {
	ix, indexed := st.(store.Indexer)
	switch strategy {
	case ResolverScan:
		return NewScanResolver(st, partition), nil
	case ResolverIndex:
		if !indexed {
			return nil, errors.New("store has no canonical key index")
		}
		return NewIndexedResolver(ix, partition), nil
	case ResolverAuto, "":
		if indexed {
			return NewIndexedResolver(ix, partition), nil
		}
		return NewScanResolver(st, partition), nil
	default:
		return nil, errors.New("unknown resolver strategy " + strategy)
	}
}
