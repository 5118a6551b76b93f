// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

/*
Package api exposes the report cache over HTTP using the chi router.

Routes:

	POST /api/v1/reports                 create a record for a deck
	GET  /api/v1/reports?deck=           record view with per-category state
	POST /api/v1/reports/analyze         resolve one category of a deck
	POST /api/v1/reports/optimize        resolve the optimize category
	GET  /api/v1/decks?card=&limit=      ranked decks from the usage snapshot

	POST /api/v1/admin/usage/refresh     crawl and publish a usage snapshot
	POST /api/v1/admin/reports/purge     delete every report record
	POST /api/v1/admin/reports/reset     clear a stuck pending category

	GET  /api/v1/health/live
	GET  /api/v1/health/ready
	GET  /metrics

Every JSON response uses the APIResponse envelope. Errors carry a stable
code; TIMEOUT and STORE_UNAVAILABLE errors are marked retryable, meaning the
same request may succeed later without changes.

Admin routes are wrapped by auth.Middleware. Global middleware order is
request ID, real IP, panic recovery, CORS, Prometheus metrics; the API group
adds security headers and the configured rate limit.
*/
package api
