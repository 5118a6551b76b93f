// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package report is the deck analysis cache: it resolves decks to report
// records and coalesces concurrent requests for the same analysis field.
//
// # Field lifecycle
//
// Every category field of a record is in one of three states:
//
//	Absent  ("no")       never requested, or reverted after a failed compute
//	Pending ("loading")  a computation is in flight somewhere
//	Ready   (any other)  the computed analysis
//
// Engine.Resolve moves a field Absent -> Pending, runs the compute function
// and writes Ready, or reverts to Absent on failure. Callers that find the
// field Pending poll the store on a fixed interval until it is Ready or a
// deadline passes.
//
// # Coalescing guarantees
//
// The store only offers per-field last-writer-wins merges, so two callers
// that both read Absent at the same instant may both compute. Both then write
// a complete value and readers converge on whichever lands last; a field never
// holds anything but a sentinel or a finished result. When the store
// implements store.Swapper and conditional writes are enabled, the
// Absent -> Pending step becomes a compare-and-swap and the loser waits
// instead of computing. Within one process an optional singleflight group
// collapses identical in-flight calls before they reach the store.
//
// # Deadlines
//
// Two wait deadlines exist: ClassShort for single-field analyses and
// ClassLong for Optimize, which fans out to extra knowledge lookups. A wait
// that runs out returns ErrTimeout and leaves the field untouched; a stuck
// Pending field is cleared only through Service.ForceReset.
package report
