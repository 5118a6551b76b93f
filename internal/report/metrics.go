// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeHit          = "hit"
	outcomeComputed     = "computed"
	outcomeWaited       = "waited"
	outcomeTimeout      = "timeout"
	outcomeNotFound     = "not_found"
	outcomeComputeError = "compute_error"
	outcomeStoreError   = "store_error"
)

var (
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashops_report_resolutions_total",
		Help: "Field resolutions by category and outcome",
	}, []string{"field", "outcome"})

	computeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clashops_report_compute_duration_seconds",
		Help:    "Time spent in the analysis compute function",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"field"})

	waitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clashops_report_wait_duration_seconds",
		Help:    "Time callers spent polling for another caller's result",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"field"})

	inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clashops_report_computations_inflight",
		Help: "Analyses currently being computed by this process",
	})

	waiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clashops_report_waiters",
		Help: "Callers currently polling for a pending field",
	})

	localCoalesced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashops_report_local_coalesced_total",
		Help: "Resolutions that shared an in-process call with another goroutine",
	}, []string{"field"})
)

func recordOutcome(field Field, err error) {
	var se *StoreError
	switch {
	case errors.Is(err, ErrNotFound):
		resolutions.WithLabelValues(string(field), outcomeNotFound).Inc()
	case errors.As(err, &se):
		resolutions.WithLabelValues(string(field), outcomeStoreError).Inc()
	}
}
