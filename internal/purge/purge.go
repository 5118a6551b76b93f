// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package purge empties the report store in bounded batches.
package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/store"
)

// DefaultBatchSize bounds the rows sent in one delete call.
const DefaultBatchSize = 100

var (
	purgedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashops_purge_rows_total",
		Help: "Rows handled by report purges, by result",
	}, []string{"result"})

	purgeLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clashops_purge_last_run_timestamp",
		Help: "Unix timestamp of the last completed purge",
	})
)

// Result summarizes one PurgeAll run.
type Result struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
	Batches int `json:"batches"`
}

// Purger deletes every record of one partition.
type Purger struct {
	store     store.Store
	partition string
	batchSize int
	notifier  events.Notifier
	log       zerolog.Logger
}

// NewPurger builds a purger. batchSize <= 0 uses DefaultBatchSize; notifier
// may be nil.
func NewPurger(st store.Store, partition string, batchSize int, log zerolog.Logger, notifier events.Notifier) *Purger {
	if partition == "" {
		partition = store.DefaultPartition
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Purger{store: st, partition: partition, batchSize: batchSize, notifier: notifier, log: log}
}

// PurgeAll deletes every record. It is not transactional: an interrupted run
// leaves some rows behind, and running it again finishes the job. Per-row and
// per-batch failures are counted in Result.Failed; only a failed scan or a
// cancelled context returns an error.
func (p *Purger) PurgeAll(ctx context.Context) (Result, error) {
	start := time.Now()
	var rows []string
	err := p.store.Scan(ctx, p.partition, func(rec *store.Record) bool {
		rows = append(rows, rec.RowID)
		return true
	})
	if err != nil {
		return Result{}, fmt.Errorf("purge: scan %s: %w", p.partition, err)
	}

	res := Result{Scanned: len(rows)}
	for i := 0; i < len(rows); i += p.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := rows[i:min(i+p.batchSize, len(rows))]
		res.Batches++

		deleted, err := p.store.DeleteBatch(ctx, p.partition, batch)
		res.Deleted += deleted
		failed := len(batch) - deleted
		res.Failed += failed

		if err != nil {
			rowErrs := store.RowErrors(err)
			for _, re := range rowErrs {
				p.log.Warn().Err(re.Err).Str("row", re.Row).Msg("Could not delete report")
			}
			if len(rowErrs) == 0 {
				p.log.Error().Err(err).Int("batch", res.Batches).Int("rows", len(batch)).Msg("Delete batch failed")
			}
		}
	}

	purgedRows.WithLabelValues("deleted").Add(float64(res.Deleted))
	purgedRows.WithLabelValues("failed").Add(float64(res.Failed))
	purgeLastRun.Set(float64(time.Now().Unix()))

	p.log.Info().
		Int("scanned", res.Scanned).
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Int("batches", res.Batches).
		Dur("took", time.Since(start)).
		Msg("Report purge finished")

	ev := events.New(events.ReportsPurged)
	ev.Count = res.Deleted
	if res.Failed > 0 {
		ev.Detail = fmt.Sprintf("%d rows failed", res.Failed)
	}
	p.notifier.Notify(ctx, ev)
	return res, nil
}
