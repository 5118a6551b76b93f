// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/clashops/internal/auth"
	"github.com/tomtom215/clashops/internal/middleware"
)

// Router binds the handler to chi routes.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil authMW disables authentication on the
// admin routes.
func NewRouter(handler *Handler, authMW *auth.Middleware, cfg *ChiMiddlewareConfig) *Router {
	if authMW == nil {
		authMW = auth.NewMiddleware(auth.ModeNone, nil, nil)
	}
	authMW.SetErrorWriter(writeAuthError)
	return &Router{
		handler:       handler,
		auth:          authMW,
		chiMiddleware: NewChiMiddleware(cfg),
	}
}

// SetupChi builds the http.Handler with all routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(router.chiMiddleware.RateLimit())

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", router.handler.ReportCreate)
			r.Get("/", router.handler.ReportGet)
			r.Post("/analyze", router.handler.ReportAnalyze)
			r.Post("/optimize", router.handler.ReportOptimize)
		})
		r.Get("/decks", router.handler.DeckList)

		r.Route("/admin", func(r chi.Router) {
			r.Use(router.auth.Authenticate)
			r.Use(router.auth.Authorize)
			r.Post("/usage/refresh", router.handler.AdminUsageRefresh)
			r.Post("/reports/purge", router.handler.AdminReportPurge)
			r.Post("/reports/reset", router.handler.AdminReportReset)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
