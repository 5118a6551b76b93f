// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

/*
Package auth protects the admin routes.

Requests carry an HS256 bearer token whose claims name a subject and a role.
The role is checked against a casbin RBAC policy keyed on the request path and
an action derived from the HTTP method:

	Request -> Authenticate (JWTManager) -> Authorize (Enforcer) -> Handler

The embedded policy grants admin read and write on /api/v1/admin/* and lets
operator trigger usage refreshes. AUTH_MODE=none disables both checks.

Usage:

	jwtm, _ := auth.NewJWTManager(secret, "clashops", 24*time.Hour)
	enf, _ := auth.NewEnforcer(auth.EnforcerConfig{})
	mw := auth.NewMiddleware(auth.ModeJWT, jwtm, enf)
	r.With(mw.Authenticate, mw.Authorize).Post("/api/v1/admin/reports/purge", h)
*/
package auth
