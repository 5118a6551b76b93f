// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package store holds report records keyed by (partition, row).
//
// The Store contract is deliberately weak: single records can be created
// once, individual fields can be merge-written (last writer wins per field),
// partitions can be scanned and rows deleted. There is no whole-record
// overwrite, so concurrent writers of sibling fields never clobber each other.
//
// Three backends are provided:
//
//   - BadgerStore: embedded BadgerDB, one key per field. Default.
//   - RedisStore: one hash per record, for several API replicas sharing state.
//   - MemoryStore: process-local maps, for tests and the CLI's dry runs.
//
// Backends may additionally implement Swapper (conditional single-field
// writes) and Indexer (lookup by folded canonical key). Callers must type
// assert and fall back to the plain contract when they are absent.
package store
