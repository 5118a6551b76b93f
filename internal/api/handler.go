// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clashops/internal/purge"
	"github.com/tomtom215/clashops/internal/report"
	"github.com/tomtom215/clashops/internal/usage"
	"github.com/tomtom215/clashops/internal/validation"
)

// maxBodyBytes bounds request bodies. Decks are a few hundred bytes.
const maxBodyBytes = 64 << 10

// Reports is the report service used by the handlers.
type Reports interface {
	CreateRecord(ctx context.Context, raw string) (report.CreateResult, error)
	Lookup(ctx context.Context, raw string) (*report.View, error)
	ResolveField(ctx context.Context, raw string, field report.Field) (string, error)
	ForceReset(ctx context.Context, raw string, field report.Field) (report.State, error)
}

// DeckQuerier answers ranked deck queries over the usage snapshot.
type DeckQuerier interface {
	Top(ctx context.Context, q usage.Query) ([]usage.Row, error)
}

// UsageRefresher rebuilds the usage snapshot.
type UsageRefresher interface {
	RefreshUsageSnapshot(ctx context.Context) (int, error)
}

// ReportPurger deletes every report record.
type ReportPurger interface {
	PurgeAll(ctx context.Context) (purge.Result, error)
}

// ReadinessCheck is one dependency checked by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies wires the handler. Decks, Refresher and Purger may be nil;
// their routes then answer 503.
type Dependencies struct {
	Reports   Reports
	Decks     DeckQuerier
	Refresher UsageRefresher
	Purger    ReportPurger
	Checks    []ReadinessCheck

	// RefreshTimeout bounds an admin-triggered refresh. Zero means no bound
	// beyond the request context.
	RefreshTimeout time.Duration
}

// Handler serves the HTTP API.
type Handler struct {
	deps      Dependencies
	startTime time.Time
}

// NewHandler creates a handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

var errEmptyBody = errors.New("request body is required")

// decodeAndValidate parses a JSON body into req and validates it. It writes
// the error response and returns false on failure.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, req interface{}) bool {
	body := http.MaxBytesReader(rw.w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errEmptyBody
		}
		rw.BadRequest("Invalid request body: " + err.Error())
		return false
	}
	return validate(rw, req)
}

func validate(rw *ResponseWriter, req interface{}) bool {
	if verr := validation.ValidateStruct(req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
