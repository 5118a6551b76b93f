// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package deck derives canonical, order-independent keys for Clash Royale
// decks.
//
// A deck arrives as a raw string such as "[Hog Rider, Musketeer, ...]" in
// whatever order the player or upstream API listed the cards. Canonicalize
// produces the same string for every permutation of the same cards, which is
// what the report cache and the usage aggregator use to decide that two decks
// are the same deck.
//
// Ordering uses Unicode simple case folding on each card name and then a plain
// byte comparison; no locale collation is applied. Card names keep the casing
// they arrived with, so use SameKey (or Fold) when comparing two canonical keys.
//
// Everything in this package is pure and safe for concurrent use.
package deck
