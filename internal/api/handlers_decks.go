// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/clashops/internal/usage"
)

const defaultDeckLimit = 20

type deckQuery struct {
	Card  string `json:"card" validate:"omitempty,max=64"`
	Limit int    `json:"limit" validate:"min=1,max=500"`
}

// DeckList handles GET /api/v1/decks?card=&limit=, returning the most used
// decks of the current snapshot.
func (h *Handler) DeckList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Decks == nil {
		rw.ServiceUnavailable("Usage snapshot is not available", nil)
		return
	}

	q := deckQuery{Card: r.URL.Query().Get("card"), Limit: defaultDeckLimit}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		q.Limit = n
	}
	if !validate(rw, &q) {
		return
	}

	rows, err := h.deps.Decks.Top(r.Context(), usage.Query{Card: q.Card, Limit: q.Limit})
	if err != nil {
		rw.ServiceError(err)
		return
	}
	if rows == nil {
		rows = []usage.Row{}
	}
	rw.SuccessList(rows, len(rows))
}
