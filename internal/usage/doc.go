// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package usage builds the deck popularity snapshot.
//
// A refresh crawls the Clash Royale API for the current decks of top clan
// members, folds the observations into one counter per canonical deck, and
// publishes the sorted snapshot: a CSV artifact replaced atomically and a
// DuckDB table queried by the /decks endpoint. A run that observes nothing
// publishes nothing, so a good snapshot is never replaced by an empty one.
package usage
