// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package metrics

import (
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Shared instrumentation. Package-specific series (store operations, engine
// resolutions, domain events) live next to the code they measure.

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clashops_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "clashops_api_request_duration_seconds",
			Help: "API request duration in seconds",
			// Analyze and optimize calls can block for minutes.
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clashops_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clashops_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Snapshot query metrics (DuckDB)
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clashops_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB snapshot queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clashops_duckdb_query_errors_total",
			Help: "Total number of DuckDB snapshot query errors",
		},
		[]string{"operation"},
	)

	// Usage refresh metrics
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clashops_usage_refresh_duration_seconds",
			Help:    "Duration of usage snapshot refreshes in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	RefreshDecks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clashops_usage_snapshot_decks",
			Help: "Number of distinct decks in the last published snapshot",
		},
	)

	RefreshErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clashops_usage_refresh_errors_total",
			Help: "Total number of failed usage refreshes",
		},
		[]string{"error_type"}, // "crawl", "publish", "empty", "other"
	)

	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clashops_usage_refresh_last_success_timestamp",
			Help: "Unix timestamp of last successful usage refresh",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clashops_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clashops_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clashops_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clashops_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDBQuery records a snapshot query
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRefresh records one usage snapshot refresh. decks is ignored on
// failure.
func RecordRefresh(duration time.Duration, decks int, err error) {
	RefreshDuration.Observe(duration.Seconds())
	if err != nil {
		RefreshErrors.WithLabelValues(refreshErrorType(err)).Inc()
		return
	}
	RefreshDecks.Set(float64(decks))
	RefreshLastSuccess.Set(float64(time.Now().Unix()))
}

func refreshErrorType(err error) string {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "crawl"):
		return "crawl"
	case strings.HasPrefix(msg, "publish"):
		return "publish"
	case strings.Contains(msg, "no observations"):
		return "empty"
	default:
		return "other"
	}
}

// InitCircuitBreaker zeroes the series for a named breaker.
func InitCircuitBreaker(name string) {
	CircuitBreakerState.WithLabelValues(name).Set(0)
	CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
}

// RecordCircuitBreakerTransition updates state metrics on a transition.
func RecordCircuitBreakerTransition(name string, from, to gobreaker.State) {
	CircuitBreakerState.WithLabelValues(name).Set(BreakerStateValue(to))
	CircuitBreakerTransitions.WithLabelValues(name, BreakerStateName(from), BreakerStateName(to)).Inc()
	if to == gobreaker.StateClosed {
		CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	}
}

// RecordCircuitBreakerResult counts one call through a breaker. result is
// "success", "failure" or "rejected".
func RecordCircuitBreakerResult(name, result string, consecutiveFailures uint32) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
	if result != "rejected" {
		CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(consecutiveFailures))
	}
}

// BreakerStateValue converts circuit breaker state to numeric value for metrics
func BreakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerStateName converts circuit breaker state to string for logging
func BreakerStateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
