// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package breaker wraps sony/gobreaker with the logging and Prometheus
// bookkeeping every upstream client in ClashOps shares.
//
// The breaker uses real time for its interval and timeout. Tests that need
// a tripped breaker use a small MinRequests and a long Timeout.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/metrics"
)

// ErrOpen is returned when a call is rejected without being attempted.
var ErrOpen = errors.New("circuit breaker open")

// Config tunes a breaker.
type Config struct {
	// MaxRequests allowed through in half-open state.
	MaxRequests uint32
	// Interval resets the counts while closed.
	Interval time.Duration
	// Timeout before an open breaker goes half-open.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
}

// DefaultConfig opens after 60% failures over at least 10 requests and tries
// again after two minutes.
func DefaultConfig() Config {
	return Config{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Breaker guards calls returning T.
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
	// ignore reports errors that should not count as failures, such as a
	// 404 from an upstream that is otherwise healthy.
	ignore func(error) bool
}

// New builds a named breaker. ignore may be nil.
func New[T any](name string, cfg Config, ignore func(error) bool) *Breaker[T] {
	metrics.InitCircuitBreaker(name)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", metrics.BreakerStateName(from)).
				Str("to", metrics.BreakerStateName(to)).
				Msg("Circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, from, to)
		},
	}
	if ignore != nil {
		settings.IsSuccessful = func(err error) bool { return err == nil || ignore(err) }
	}

	return &Breaker[T]{name: name, cb: gobreaker.NewCircuitBreaker[T](settings), ignore: ignore}
}

// Execute runs fn unless the breaker is open. Rejections wrap ErrOpen.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerResult(b.name, "success", 0)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerResult(b.name, "rejected", 0)
		var zero T
		return zero, errors.Join(ErrOpen, err)
	case b.ignore != nil && b.ignore(err):
		metrics.RecordCircuitBreakerResult(b.name, "success", 0)
	default:
		metrics.RecordCircuitBreakerResult(b.name, "failure", b.cb.Counts().ConsecutiveFailures)
	}
	return result, err
}

// State returns the current breaker state.
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

// Name returns the breaker name.
func (b *Breaker[T]) Name() string { return b.name }
