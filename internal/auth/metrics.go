// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authDecisions counts admin-route decisions.
	// Labels:
	//   - outcome: "allowed", "unauthenticated", "forbidden", "error"
	authDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clashops_auth_decisions_total",
			Help: "Admin route authentication and authorization decisions",
		},
		[]string{"outcome"},
	)

	// tokenValidationErrors counts rejected bearer tokens.
	tokenValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clashops_auth_token_validation_errors_total",
			Help: "Bearer tokens that failed validation",
		},
	)
)

const (
	outcomeAllowed         = "allowed"
	outcomeUnauthenticated = "unauthenticated"
	outcomeForbidden       = "forbidden"
	outcomeError           = "error"
)

func recordDecision(outcome string) {
	authDecisions.WithLabelValues(outcome).Inc()
}
