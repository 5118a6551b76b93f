// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no record matches the deck. It is an ordinary
	// outcome, not logged as an error.
	ErrNotFound = errors.New("report not found")

	// ErrTimeout means the wait deadline passed while the field was still
	// being computed. Retryable.
	ErrTimeout = errors.New("analysis still in progress")

	// ErrUnknownField is returned for category names outside Fields.
	ErrUnknownField = errors.New("unknown report category")

	// ErrInvalidResult is wrapped in a ComputeError when a compute function
	// returns an empty string or a sentinel value.
	ErrInvalidResult = errors.New("compute returned an unusable result")
)

// ComputeError is returned when the compute function failed. The field has
// been reverted to Absent so a later request can retry.
type ComputeError struct {
	Row   string
	Field Field
	Err   error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s for %q: %v", e.Field, e.Row, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the record store. The engine never retries
// store calls itself.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("report store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable reports whether err is worth retrying later: timeouts and store
// failures are, validation and compute failures are not.
func Retryable(err error) bool {
	var se *StoreError
	return errors.Is(err, ErrTimeout) || errors.As(err, &se)
}
