// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(testSecret, "clashops", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	if _, err := NewJWTManager("", "clashops", time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("NewJWTManager(\"\") error = %v, want ErrEmptySecret", err)
	}
	m, err := NewJWTManager(testSecret, "", 0)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	if m.ttl != 24*time.Hour {
		t.Errorf("default ttl = %v, want 24h", m.ttl)
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := newTestManager(t)

	tests := []struct {
		name    string
		subject string
		role    string
	}{
		{"admin token", "ops@clashops", "admin"},
		{"operator token", "refresh-cron", "operator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.GenerateToken(tt.subject, tt.role)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}
			claims, err := manager.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.Subject != tt.subject {
				t.Errorf("subject = %q, want %q", claims.Subject, tt.subject)
			}
			if claims.Role != tt.role {
				t.Errorf("role = %q, want %q", claims.Role, tt.role)
			}
			if claims.Issuer != "clashops" {
				t.Errorf("issuer = %q, want clashops", claims.Issuer)
			}
		})
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	manager := newTestManager(t)

	for _, token := range []string{"", "invalid.token.format", "not_a_jwt_token"} {
		claims, err := manager.ValidateToken(token)
		if err == nil || claims != nil {
			t.Errorf("ValidateToken(%q) = %v, %v; want error", token, claims, err)
		}
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager1 := newTestManager(t)
	manager2, err := NewJWTManager("second_secret_key_that_is_different_from_first_12345", "clashops", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	token, err := manager1.GenerateToken("ops", "admin")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := manager2.ValidateToken(token); err == nil {
		t.Error("ValidateToken() with wrong secret succeeded")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	manager := newTestManager(t)
	issued := time.Now().Add(-2 * time.Hour)
	manager.now = func() time.Time { return issued }

	token, err := manager.GenerateToken("ops", "admin")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	manager.now = time.Now
	_, err = manager.ValidateToken(token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("ValidateToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	other, err := NewJWTManager(testSecret, "someone-else", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	token, err := other.GenerateToken("ops", "admin")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := newTestManager(t).ValidateToken(token); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Errorf("ValidateToken() error = %v, want ErrTokenInvalidIssuer", err)
	}
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			Issuer:    "clashops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := newTestManager(t).ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted an unsigned token")
	}
}

func TestValidateToken_MissingRole(t *testing.T) {
	manager := newTestManager(t)
	token, err := manager.GenerateToken("ops", "")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := manager.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted a token without a role")
	}
}
