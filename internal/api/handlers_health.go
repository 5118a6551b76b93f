// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package api

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds all readiness checks of one request.
const readinessTimeout = 2 * time.Second

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"status":         "alive",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// HealthReady runs every readiness check and answers 503 if any fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps.Checks))
	ready := true
	for _, c := range h.deps.Checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			ready = false
			continue
		}
		checks[c.Name] = "ok"
	}

	rw := NewResponseWriter(w, r)
	if !ready {
		rw.ServiceUnavailable("Service not ready", checks)
		return
	}
	rw.Success(map[string]interface{}{"status": "ready", "checks": checks})
}
