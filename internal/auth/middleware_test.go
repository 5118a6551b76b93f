// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(EnforcerConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	return e
}

func TestEnforcerEmbeddedPolicy(t *testing.T) {
	e := newTestEnforcer(t)

	tests := []struct {
		role, object, action string
		want                 bool
	}{
		{"admin", "/api/v1/admin/reports/purge", "write", true},
		{"admin", "/api/v1/admin/usage/refresh", "write", true},
		{"operator", "/api/v1/admin/usage/refresh", "write", true},
		{"operator", "/api/v1/admin/reports/purge", "write", false},
		{"viewer", "/api/v1/admin/usage/refresh", "write", false},
		{"admin", "/api/v1/reports", "write", false},
	}
	for _, tt := range tests {
		got, err := e.Enforce(tt.role, tt.object, tt.action)
		if err != nil {
			t.Fatalf("Enforce(%s, %s, %s) error = %v", tt.role, tt.object, tt.action, err)
		}
		if got != tt.want {
			t.Errorf("Enforce(%s, %s, %s) = %v, want %v", tt.role, tt.object, tt.action, got, tt.want)
		}
	}
}

func TestEnforcerPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	if err := os.WriteFile(path, []byte("p, viewer, /api/v1/admin/*, write\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	e, err := NewEnforcer(EnforcerConfig{PolicyPath: path})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	if ok, _ := e.Enforce("viewer", "/api/v1/admin/reports/reset", "write"); !ok {
		t.Error("file policy not applied")
	}
	if ok, _ := e.Enforce("admin", "/api/v1/admin/reports/reset", "write"); ok {
		t.Error("embedded policy should not apply when a file is given")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeNone, "none": ModeNone, "jwt": ModeJWT} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("basic"); err == nil {
		t.Error("ParseMode(basic) should fail")
	}
}

func TestMiddleware(t *testing.T) {
	jwtm := newTestManager(t)
	mw := NewMiddleware(ModeJWT, jwtm, newTestEnforcer(t))

	var seen *Claims
	handler := mw.Authenticate(mw.Authorize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	token := func(role string) string {
		tok, err := jwtm.GenerateToken("tester", role)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		return "Bearer " + tok
	}

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing token", "/api/v1/admin/reports/purge", "", http.StatusUnauthorized},
		{"bad scheme", "/api/v1/admin/reports/purge", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/api/v1/admin/reports/purge", "Bearer nope", http.StatusUnauthorized},
		{"admin purge", "/api/v1/admin/reports/purge", token("admin"), http.StatusNoContent},
		{"operator purge", "/api/v1/admin/reports/purge", token("operator"), http.StatusForbidden},
		{"operator refresh", "/api/v1/admin/usage/refresh", token("operator"), http.StatusNoContent},
		{"lowercase bearer", "/api/v1/admin/usage/refresh", "bearer " + token("admin")[7:], http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusNoContent && (seen == nil || seen.Subject != "tester") {
				t.Errorf("claims in context = %+v", seen)
			}
		})
	}
}

func TestMiddlewareModeNone(t *testing.T) {
	mw := NewMiddleware(ModeNone, nil, nil)
	handler := mw.Authenticate(mw.Authorize(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/reports/purge", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareCustomErrorWriter(t *testing.T) {
	mw := NewMiddleware(ModeJWT, newTestManager(t), newTestEnforcer(t))
	var gotStatus int
	mw.SetErrorWriter(func(w http.ResponseWriter, _ *http.Request, status int, _ string) {
		gotStatus = status
		w.WriteHeader(status)
	})
	rec := httptest.NewRecorder()
	mw.Authenticate(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/x", nil))
	if gotStatus != http.StatusUnauthorized {
		t.Errorf("error writer status = %d, want 401", gotStatus)
	}
}
