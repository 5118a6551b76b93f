// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package deck

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyIdentity is returned when a raw deck contains no card names.
	ErrEmptyIdentity = errors.New("deck has no cards")

	// ErrWrongMemberCount is returned when a raw deck does not have the
	// expected number of cards.
	ErrWrongMemberCount = errors.New("deck has wrong number of cards")
)

// ValidationError describes a raw deck that was rejected before touching any
// store. It wraps one of the sentinel errors above.
type ValidationError struct {
	Raw      string
	Count    int
	Expected int
	Err      error
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrWrongMemberCount) {
		return fmt.Sprintf("invalid deck: expected %d cards, got %d", e.Expected, e.Count)
	}
	return "invalid deck: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
