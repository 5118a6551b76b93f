// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/clashops/internal/auth"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/report"
	"github.com/tomtom215/clashops/internal/usage"
)

// RefreshResult is the body of POST /api/v1/admin/usage/refresh.
type RefreshResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DecksUploaded int    `json:"decks_uploaded"`
}

// PurgeResult is the body of POST /api/v1/admin/reports/purge.
type PurgeResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// ResetResult is the body of POST /api/v1/admin/reports/reset.
type ResetResult struct {
	Category      string `json:"category"`
	PreviousState string `json:"previous_state"`
	Reset         bool   `json:"reset"`
}

func actor(r *http.Request) string {
	if c := auth.ClaimsFromContext(r.Context()); c != nil {
		return c.Subject
	}
	return "anonymous"
}

// AdminUsageRefresh handles POST /api/v1/admin/usage/refresh. It runs the
// crawl synchronously and reports how many distinct decks were published.
func (h *Handler) AdminUsageRefresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Refresher == nil {
		rw.ServiceUnavailable("Usage refresh is not configured", nil)
		return
	}

	ctx := r.Context()
	if h.deps.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.RefreshTimeout)
		defer cancel()
	}

	log := logging.Ctx(ctx)
	log.Info().Str("actor", actor(r)).Msg("Usage refresh requested")

	n, err := h.deps.Refresher.RefreshUsageSnapshot(ctx)
	switch {
	case errors.Is(err, usage.ErrRefreshInProgress):
		rw.Conflict(err.Error(), nil)
		return
	case errors.Is(err, usage.ErrNoObservations):
		rw.ExternalServiceError("clash royale", err)
		return
	case err != nil:
		rw.ExternalServiceError("usage refresh", err)
		return
	}

	rw.Success(RefreshResult{
		Success:       true,
		Message:       fmt.Sprintf("Published %d decks", n),
		DecksUploaded: n,
	})
}

// AdminReportPurge handles POST /api/v1/admin/reports/purge. Rows that fail
// to delete are counted, not fatal; running it twice is harmless.
func (h *Handler) AdminReportPurge(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Purger == nil {
		rw.ServiceUnavailable("Report purge is not configured", nil)
		return
	}

	logging.Ctx(r.Context()).Warn().Str("actor", actor(r)).Msg("Report purge requested")
	res, err := h.deps.Purger.PurgeAll(r.Context())
	if err != nil {
		if res.Scanned == 0 {
			rw.ServiceError(&report.StoreError{Op: "purge", Err: err})
			return
		}
		// Interrupted after the scan: report progress, a rerun finishes it.
		logging.Ctx(r.Context()).Warn().Err(err).Int("deleted", res.Deleted).Msg("Report purge interrupted")
	}
	rw.Success(PurgeResult{Deleted: res.Deleted, Failed: res.Failed})
}

// AdminReportReset handles POST /api/v1/admin/reports/reset. Only a Pending
// category is cleared; other states are reported unchanged.
func (h *Handler) AdminReportReset(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req categoryRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	field, err := report.ParseField(req.Category)
	if err != nil {
		rw.ServiceError(err)
		return
	}

	prev, err := h.deps.Reports.ForceReset(r.Context(), req.Deck, field)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("actor", actor(r)).
		Str("category", string(field)).
		Stringer("previous", prev).
		Msg("Report category reset")

	rw.Success(ResetResult{
		Category:      string(field),
		PreviousState: prev.String(),
		Reset:         prev == report.Pending,
	})
}
