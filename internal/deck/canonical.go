// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package deck

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Size is the number of cards in a Clash Royale battle deck.
const Size = 8

// Separator joins card names inside a canonical key.
const Separator = ","

// Members splits a raw deck into trimmed, non-empty card names, in the order
// they were given. Square brackets anywhere in the input are discarded.
func Members(raw string) []string {
	raw = strings.NewReplacer("[", "", "]", "").Replace(raw)

	parts := strings.Split(raw, Separator)
	cards := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cards = append(cards, p)
		}
	}
	return cards
}

// Canonicalize returns the order-independent form of raw. Malformed input is
// not rejected; use CanonicalizeValidated at trust boundaries.
func Canonicalize(raw string) string {
	return join(Members(raw))
}

// CanonicalizeValidated is Canonicalize plus a card count check. expected must
// be positive.
func CanonicalizeValidated(raw string, expected int) (string, error) {
	cards := Members(raw)
	if len(cards) == 0 {
		return "", &ValidationError{Raw: raw, Expected: expected, Err: ErrEmptyIdentity}
	}
	if len(cards) != expected {
		return "", &ValidationError{Raw: raw, Count: len(cards), Expected: expected, Err: ErrWrongMemberCount}
	}
	return join(cards), nil
}

// Fold returns the case-folded form of a canonical key, suitable for map keys
// and index lookups.
func Fold(key string) string {
	return cases.Fold().String(key)
}

// SameKey reports whether two raw decks name the same cards.
func SameKey(a, b string) bool {
	return Fold(Canonicalize(a)) == Fold(Canonicalize(b))
}

func join(cards []string) string {
	if len(cards) == 0 {
		return ""
	}

	// A Caser is stateful; one per call keeps this function goroutine safe.
	folder := cases.Fold()
	type entry struct {
		card   string
		folded string
	}
	entries := make([]entry, len(cards))
	for i, c := range cards {
		entries[i] = entry{card: c, folded: folder.String(c)}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].folded != entries[j].folded {
			return entries[i].folded < entries[j].folded
		}
		return entries[i].card < entries[j].card
	})

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(e.card)
	}
	return b.String()
}
