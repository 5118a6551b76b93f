// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SchedulePartition holds one row per scheduled job. Report purges never
// touch it.
const SchedulePartition = "_schedule"

const lastRunField = "last_run"

// RunMarker persists the last successful run of a scheduled job as a record
// in SchedulePartition.
type RunMarker struct {
	store Store
	name  string
}

// NewRunMarker returns the marker for job name.
func NewRunMarker(st Store, name string) *RunMarker {
	return &RunMarker{store: st, name: name}
}

// LastRun returns the zero time if the job never recorded a run.
func (m *RunMarker) LastRun(ctx context.Context) (time.Time, error) {
	rec, err := m.store.Get(ctx, SchedulePartition, m.name)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	v, ok := rec.Fields[lastRunField]
	if !ok || v == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("run marker %s: %w", m.name, err)
	}
	return at, nil
}

// RecordRun stores at as the last run.
func (m *RunMarker) RecordRun(ctx context.Context, at time.Time) error {
	delta := map[string]string{lastRunField: at.UTC().Format(time.RFC3339Nano)}
	err := m.store.MergeUpdate(ctx, SchedulePartition, m.name, delta)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	err = m.store.CreateIfAbsent(ctx, &Record{
		Partition:    SchedulePartition,
		RowID:        m.name,
		CanonicalKey: m.name,
		Fields:       delta,
	})
	if errors.Is(err, ErrAlreadyExists) {
		// Created concurrently.
		return m.store.MergeUpdate(ctx, SchedulePartition, m.name, delta)
	}
	return err
}
