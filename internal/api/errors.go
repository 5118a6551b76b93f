// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/report"
	"github.com/tomtom215/clashops/internal/usage"
)

// ServiceError maps an error from the report service, refresher or purger
// to a status code and error code.
func (rw *ResponseWriter) ServiceError(err error) {
	var (
		verr *deck.ValidationError
		cerr *report.ComputeError
		serr *report.StoreError
	)
	log := logging.Ctx(rw.r.Context())

	switch {
	case errors.As(err, &verr):
		rw.ValidationError(verr.Error(), map[string]interface{}{
			"count":    verr.Count,
			"expected": verr.Expected,
		})
	case errors.Is(err, report.ErrUnknownField):
		rw.BadRequest(err.Error())
	case errors.Is(err, report.ErrNotFound):
		rw.NotFound("No report exists for this deck")
	case errors.Is(err, report.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		rw.Retryable(http.StatusGatewayTimeout, ErrCodeTimeout, "Analysis is still in progress, retry later")
	case errors.As(err, &cerr):
		log.Error().Err(err).Str("category", string(cerr.Field)).Msg("Analysis failed")
		rw.Error(http.StatusBadGateway, ErrCodeAnalysisFailed, "Analysis failed, the category can be requested again")
	case errors.As(err, &serr):
		log.Error().Err(err).Str("op", serr.Op).Msg("Report store error")
		rw.Retryable(http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "Report store unavailable")
	case errors.Is(err, usage.ErrRefreshInProgress):
		rw.Conflict(err.Error(), nil)
	case errors.Is(err, context.Canceled):
		log.Debug().Msg("Client went away")
		rw.Retryable(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Request canceled")
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		rw.InternalError("Internal server error")
	}
}
