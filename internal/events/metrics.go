// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashops_events_published_total",
		Help: "Domain events published, by type",
	}, []string{"type"})

	eventsPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashops_events_publish_failures_total",
		Help: "Domain events that could not be published, by type",
	}, []string{"type"})

	eventsAudited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashops_events_audited_total",
		Help: "Domain events consumed by the audit subscriber, by type",
	}, []string{"type"})
)
