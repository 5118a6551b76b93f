// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/report"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran and failed (timeout, compute error)
	ExitCommandError = 2 // bad input or configuration
)

// ExitError carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code for err. Errors without one exit 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var verr *deck.ValidationError
	if errors.As(err, &verr) || errors.Is(err, report.ErrUnknownField) {
		return ExitCommandError
	}
	return ExitFailure
}

// Response is the JSON output shape.
type Response struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// formatter writes results as text or JSON.
type formatter struct {
	json bool
	w    io.Writer
}

// result prints data. text renders the human form.
func (f *formatter) result(data interface{}, text func(w io.Writer)) error {
	if f.json {
		return json.NewEncoder(f.w).Encode(Response{Status: "ok", Data: data})
	}
	text(f.w)
	return nil
}

// failure prints err in JSON mode and returns it for the exit code.
func (f *formatter) failure(err error) error {
	if f.json {
		_ = json.NewEncoder(f.w).Encode(Response{Status: "error", Error: err.Error()})
	}
	return err
}
