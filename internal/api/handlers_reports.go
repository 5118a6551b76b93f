// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package api

import (
	"net/http"

	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/report"
)

type deckRequest struct {
	Deck string `json:"deck" validate:"required,deck,max=1024"`
}

type categoryRequest struct {
	Deck     string `json:"deck" validate:"required,deck,max=1024"`
	Category string `json:"category" validate:"required,category"`
}

// ReportCreated is the body of POST /api/v1/reports.
type ReportCreated struct {
	RowID        string `json:"row_id"`
	CanonicalKey string `json:"canonical_key"`
	Status       string `json:"status"`
}

// CategoryView is the state of one category in a ReportView.
type CategoryView struct {
	State string `json:"state"`
	Value string `json:"value,omitempty"`
}

// ReportView is the body of GET /api/v1/reports.
type ReportView struct {
	RowID        string                  `json:"row_id"`
	CanonicalKey string                  `json:"canonical_key"`
	Categories   map[string]CategoryView `json:"categories"`
}

// Analysis is the body returned by the analyze and optimize routes.
type Analysis struct {
	Deck     string `json:"deck"`
	Category string `json:"category"`
	Value    string `json:"value"`
}

// ReportCreate handles POST /api/v1/reports. An existing record for the same
// cards, in any order or case, answers 409 with its row ID.
func (h *Handler) ReportCreate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req deckRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	res, err := h.deps.Reports.CreateRecord(r.Context(), req.Deck)
	if err != nil {
		rw.ServiceError(err)
		return
	}

	body := ReportCreated{RowID: res.RowID, CanonicalKey: res.CanonicalKey, Status: res.Status.String()}
	if res.Status == report.AlreadyExists {
		rw.Conflict("A report already exists for this deck", body)
		return
	}
	rw.Created(body)
}

// ReportGet handles GET /api/v1/reports?deck=.
func (h *Handler) ReportGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	req := deckRequest{Deck: r.URL.Query().Get("deck")}
	if !validate(rw, &req) {
		return
	}

	v, err := h.deps.Reports.Lookup(r.Context(), req.Deck)
	if err != nil {
		rw.ServiceError(err)
		return
	}

	out := ReportView{
		RowID:        v.RowID,
		CanonicalKey: v.CanonicalKey,
		Categories:   make(map[string]CategoryView, len(v.States)),
	}
	for f, s := range v.States {
		out.Categories[string(f)] = CategoryView{State: s.String(), Value: v.Values[f]}
	}
	rw.Success(out)
}

// ReportAnalyze handles POST /api/v1/reports/analyze. The request blocks
// until the category is ready, the computation fails, or the wait deadline
// for the category passes.
func (h *Handler) ReportAnalyze(w http.ResponseWriter, r *http.Request) {
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
	h.resolve(rw, r, req.Deck, field)
}

// ReportOptimize handles POST /api/v1/reports/optimize.
func (h *Handler) ReportOptimize(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req deckRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	h.resolve(rw, r, req.Deck, report.Optimize)
}

func (h *Handler) resolve(rw *ResponseWriter, r *http.Request, raw string, field report.Field) {
	value, err := h.deps.Reports.ResolveField(r.Context(), raw, field)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Str("category", string(field)).Msg("Resolve did not return a value")
		rw.ServiceError(err)
		return
	}
	rw.Success(Analysis{Deck: raw, Category: string(field), Value: value})
}
