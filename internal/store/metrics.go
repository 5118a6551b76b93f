// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendMemory = "memory"
	backendBadger = "badger"
	backendRedis  = "redis"

	opGet    = "get"
	opCreate = "create"
	opMerge  = "merge"
	opSwap   = "swap"
	opScan   = "scan"
	opDelete = "delete"
)

var (
	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashops_store_operations_total",
		Help: "Record store operations by backend, operation and result",
	}, []string{"backend", "op", "result"})

	storeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clashops_store_operation_duration_seconds",
		Help:    "Record store operation latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"backend", "op"})

	storeGCRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clashops_store_gc_runs_total",
		Help: "Completed BadgerDB value log GC passes",
	})
)

// observe records one operation. errp is read after the operation returns,
// so call it as `defer observe(..., &err)` with a named result.
func observe(backend, op string, start time.Time, errp *error) {
	storeLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	storeOperations.WithLabelValues(backend, op, resultLabel(*errp)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "exists"
	default:
		return "error"
	}
}
