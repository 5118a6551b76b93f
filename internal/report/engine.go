// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/store"
)

// ComputeFunc produces the analysis for one field. It runs on a context that
// is not cancelled when the requesting caller goes away.
type ComputeFunc func(ctx context.Context) (string, error)

// EngineConfig holds the wait protocol constants.
type EngineConfig struct {
	Partition     string
	PollInterval  time.Duration
	ShortDeadline time.Duration
	LongDeadline  time.Duration

	// ConditionalWrites claims Absent fields with a compare-and-swap when
	// the store supports it.
	ConditionalWrites bool

	// LocalCoalescing shares one resolution between goroutines of this
	// process asking for the same row and field.
	LocalCoalescing bool
}

// DefaultEngineConfig returns the production timings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Partition:         store.DefaultPartition,
		PollInterval:      time.Second,
		ShortDeadline:     120 * time.Second,
		LongDeadline:      300 * time.Second,
		ConditionalWrites: true,
		LocalCoalescing:   true,
	}
}

// Engine drives the Absent -> Pending -> Ready lifecycle of record fields.
type Engine struct {
	store    store.Store
	swapper  store.Swapper
	cfg      EngineConfig
	group    singleflight.Group
	notifier events.Notifier
}

// NewEngine builds an engine over st. notifier may be nil.
func NewEngine(st store.Store, cfg EngineConfig, notifier events.Notifier) *Engine {
	if cfg.Partition == "" {
		cfg.Partition = store.DefaultPartition
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if notifier == nil {
		notifier = events.Nop{}
	}

	e := &Engine{store: st, cfg: cfg, notifier: notifier}
	if sw, ok := st.(store.Swapper); ok && cfg.ConditionalWrites {
		e.swapper = sw
	}
	return e
}

// Deadline returns the wait deadline for c.
func (e *Engine) Deadline(c Class) time.Duration {
	if c == ClassLong {
		return e.cfg.LongDeadline
	}
	return e.cfg.ShortDeadline
}

func (e *Engine) logger(ctx context.Context) zerolog.Logger {
	return logging.Ctx(ctx).With().Str("component", "report-engine").Logger()
}

// Resolve returns the Ready value of field on row, computing it with compute
// if nobody has yet, or waiting for whoever is computing it.
//
// Errors: ErrNotFound, ErrTimeout (wrapped), *ComputeError, *StoreError, or
// the context error if ctx ends while waiting.
func (e *Engine) Resolve(ctx context.Context, row string, field Field, compute ComputeFunc) (string, error) {
	if !e.cfg.LocalCoalescing {
		return e.resolve(ctx, row, field, compute)
	}

	ch := e.group.DoChan(row+"\x00"+string(field), func() (any, error) {
		return e.resolve(context.WithoutCancel(ctx), row, field, compute)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			localCoalesced.WithLabelValues(string(field)).Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (e *Engine) resolve(ctx context.Context, row string, field Field, compute ComputeFunc) (string, error) {
	rec, err := e.load(ctx, row)
	if err != nil {
		recordOutcome(field, err)
		return "", err
	}

	current := rec.Fields[string(field)]
	switch Classify(current) {
	case Ready:
		resolutions.WithLabelValues(string(field), outcomeHit).Inc()
		return current, nil
	case Pending:
		return e.wait(ctx, row, field)
	}

	claimed, err := e.claim(ctx, row, field, current)
	if err != nil {
		recordOutcome(field, err)
		return "", err
	}
	if !claimed {
		e.logger(ctx).Debug().Str("row", row).Str("field", string(field)).Msg("Lost claim race, waiting")
		return e.wait(ctx, row, field)
	}
	return e.run(ctx, row, field, compute)
}

func (e *Engine) load(ctx context.Context, row string) (*store.Record, error) {
	rec, err := e.store.Get(ctx, e.cfg.Partition, row)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return rec, nil
}

// claim moves the field from Absent to Pending. It reports false when a
// conditional write found someone else already moved it.
func (e *Engine) claim(ctx context.Context, row string, field Field, observed string) (bool, error) {
	var err error
	if e.swapper != nil {
		var swapped bool
		swapped, err = e.swapper.CompareAndSwap(ctx, e.cfg.Partition, row, string(field), observed, PendingValue)
		if err == nil {
			return swapped, nil
		}
	} else {
		err = e.store.MergeUpdate(ctx, e.cfg.Partition, row, map[string]string{string(field): PendingValue})
		if err == nil {
			return true, nil
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrNotFound
	}
	return false, &StoreError{Op: "claim", Err: err}
}

// run executes compute for a claimed field and records the result.
func (e *Engine) run(ctx context.Context, row string, field Field, compute ComputeFunc) (string, error) {
	log := e.logger(ctx)
	cctx := context.WithoutCancel(ctx)

	inflight.Inc()
	started := time.Now()
	value, err := compute(cctx)
	inflight.Dec()
	computeDuration.WithLabelValues(string(field)).Observe(time.Since(started).Seconds())

	if err == nil && Classify(value) != Ready {
		err = ErrInvalidResult
	}
	if err != nil {
		e.release(cctx, row, field)
		resolutions.WithLabelValues(string(field), outcomeComputeError).Inc()
		log.Warn().Err(err).Str("row", row).Str("field", string(field)).Msg("Analysis failed, field reverted")

		ev := events.New(events.FieldFailed)
		ev.RowID, ev.Field, ev.Detail = row, string(field), err.Error()
		e.notifier.Notify(cctx, ev)
		return "", &ComputeError{Row: row, Field: field, Err: err}
	}

	if err := e.store.MergeUpdate(cctx, e.cfg.Partition, row, map[string]string{string(field): value}); err != nil {
		e.release(cctx, row, field)
		resolutions.WithLabelValues(string(field), outcomeStoreError).Inc()
		if errors.Is(err, store.ErrNotFound) {
			// Purged while computing.
			return "", ErrNotFound
		}
		return "", &StoreError{Op: "write result", Err: err}
	}

	resolutions.WithLabelValues(string(field), outcomeComputed).Inc()
	log.Info().
		Str("row", row).
		Str("field", string(field)).
		Dur("took", time.Since(started)).
		Msg("Analysis stored")

	ev := events.New(events.FieldReady)
	ev.RowID, ev.Field = row, string(field)
	e.notifier.Notify(cctx, ev)
	return value, nil
}

// release reverts a claimed field to Absent so a later request can retry.
// With conditional writes only a Pending field is reverted: after a reset
// another caller may have claimed and finished the field, and its value
// must survive this caller's failure.
func (e *Engine) release(ctx context.Context, row string, field Field) {
	var err error
	if e.swapper != nil {
		var swapped bool
		swapped, err = e.swapper.CompareAndSwap(ctx, e.cfg.Partition, row, string(field), PendingValue, AbsentValue)
		if err == nil && !swapped {
			e.logger(ctx).Debug().
				Str("row", row).
				Str("field", string(field)).
				Msg("Field no longer pending, left as is")
			return
		}
	} else {
		err = e.store.MergeUpdate(ctx, e.cfg.Partition, row, map[string]string{string(field): AbsentValue})
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger(ctx).Error().Err(err).
			Str("row", row).
			Str("field", string(field)).
			Msg("Could not revert field; it stays pending until reset")
	}
}

// wait polls until the field is Ready or the field's deadline passes. Both
// Pending and Absent mean "still working": a failed compute elsewhere can
// revert the field before another caller claims it again.
func (e *Engine) wait(ctx context.Context, row string, field Field) (string, error) {
	deadline := e.Deadline(ClassOf(field))
	start := time.Now()
	waiting.Inc()
	defer waiting.Dec()

	timer := time.NewTimer(min(e.cfg.PollInterval, deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}

		rec, err := e.load(ctx, row)
		if err != nil {
			recordOutcome(field, err)
			return "", err
		}
		if v := rec.Fields[string(field)]; Classify(v) == Ready {
			waitDuration.WithLabelValues(string(field)).Observe(time.Since(start).Seconds())
			resolutions.WithLabelValues(string(field), outcomeWaited).Inc()
			return v, nil
		}

		elapsed := time.Since(start)
		if elapsed >= deadline {
			waitDuration.WithLabelValues(string(field)).Observe(elapsed.Seconds())
			resolutions.WithLabelValues(string(field), outcomeTimeout).Inc()
			return "", fmt.Errorf("%w: %s for %q after %s", ErrTimeout, field, row, elapsed.Round(time.Millisecond))
		}
		timer.Reset(min(e.cfg.PollInterval, deadline-elapsed))
	}
}

// Reset moves a Pending field back to Absent. Fields in any other state are
// left alone. It returns the state found before the reset.
func (e *Engine) Reset(ctx context.Context, row string, field Field) (State, error) {
	rec, err := e.load(ctx, row)
	if err != nil {
		return Absent, err
	}
	current := rec.Fields[string(field)]
	state := Classify(current)
	if state != Pending {
		return state, nil
	}

	if e.swapper != nil {
		swapped, err := e.swapper.CompareAndSwap(ctx, e.cfg.Partition, row, string(field), PendingValue, AbsentValue)
		if err != nil {
			return state, &StoreError{Op: "reset", Err: err}
		}
		if !swapped {
			// Finished or reset by someone else in the meantime.
			rec, err := e.load(ctx, row)
			if err != nil {
				return state, err
			}
			return Classify(rec.Fields[string(field)]), nil
		}
	} else if err := e.store.MergeUpdate(ctx, e.cfg.Partition, row, map[string]string{string(field): AbsentValue}); err != nil {
		return state, &StoreError{Op: "reset", Err: err}
	}

	e.logger(ctx).Warn().Str("row", row).Str("field", string(field)).Msg("Pending field force-reset")
	ev := events.New(events.FieldReset)
	ev.RowID, ev.Field = row, string(field)
	e.notifier.Notify(ctx, ev)
	return Pending, nil
}
