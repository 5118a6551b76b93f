// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/clashops/internal/logging"
)

// Mode is the admin authentication mode.
type Mode string

const (
	ModeNone Mode = "none"
	ModeJWT  Mode = "jwt"
)

// ParseMode converts a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "none", "":
		return ModeNone, nil
	case "jwt":
		return ModeJWT, nil
	default:
		return "", errors.New("invalid auth mode: " + s)
	}
}

type contextKey string

const claimsContextKey contextKey = "claims"

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsContextKey).(*Claims)
	return c
}

// ErrorWriter renders an auth failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, message string)

func plainError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	http.Error(w, message, status)
}

// Middleware authenticates bearer tokens and authorizes them with casbin.
type Middleware struct {
	mode     Mode
	jwt      *JWTManager
	enforcer *Enforcer
	onError  ErrorWriter
}

// NewMiddleware builds the middleware. jwt and enforcer may be nil in
// ModeNone.
func NewMiddleware(mode Mode, jwt *JWTManager, enforcer *Enforcer) *Middleware {
	return &Middleware{mode: mode, jwt: jwt, enforcer: enforcer, onError: plainError}
}

// SetErrorWriter replaces the default text/plain error responses.
func (m *Middleware) SetErrorWriter(fn ErrorWriter) {
	if fn != nil {
		m.onError = fn
	}
}

// Authenticate validates the bearer token and stores its claims in the
// request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode == ModeNone {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			recordDecision(outcomeUnauthenticated)
			m.onError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			tokenValidationErrors.Inc()
			recordDecision(outcomeUnauthenticated)
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Token validation failed")
			m.onError(w, r, http.StatusUnauthorized, "unauthorized: invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("unauthorized: missing token")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("unauthorized: invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authorize checks the authenticated role against the policy for the
// request path and method. It must run after Authenticate.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode == ModeNone {
			next.ServeHTTP(w, r)
			return
		}

		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			recordDecision(outcomeForbidden)
			m.onError(w, r, http.StatusForbidden, "forbidden: no authentication context")
			return
		}

		allowed, err := m.enforcer.Enforce(claims.Role, r.URL.Path, methodToAction(r.Method))
		if err != nil {
			recordDecision(outcomeError)
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
			m.onError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		if !allowed {
			recordDecision(outcomeForbidden)
			logging.Ctx(r.Context()).Warn().
				Str("subject", claims.Subject).
				Str("role", claims.Role).
				Str("path", r.URL.Path).
				Msg("Admin request denied")
			m.onError(w, r, http.StatusForbidden, "forbidden: insufficient permissions")
			return
		}

		recordDecision(outcomeAllowed)
		next.ServeHTTP(w, r)
	})
}

// methodToAction maps HTTP methods to casbin actions.
func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return "write"
	default:
		return "read"
	}
}
