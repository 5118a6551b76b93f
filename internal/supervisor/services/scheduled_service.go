// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/clashops/internal/logging"
)

// Task is one run of a scheduled job.
type Task func(ctx context.Context) error

// RunLog remembers when a job last completed, across restarts.
type RunLog interface {
	// LastRun returns the zero time if the job has no recorded run.
	LastRun(ctx context.Context) (time.Time, error)
	RecordRun(ctx context.Context, at time.Time) error
}

// maxWait caps a single sleep so wall clock jumps (suspend, NTP steps) are
// noticed within the hour.
const maxWait = time.Hour

// ScheduledService runs a task on a Schedule under suture.
//
// Run times come from the wall clock, so a restart between two runs does
// not push the next run back. With a RunLog, a start that finds a run time
// passed since the last recorded run (the process was down at the time)
// runs the task straight away.
//
// Task errors are logged and the schedule continues; only a panic makes
// suture restart the service. A schedule that never fires disables the
// service: Serve returns suture.ErrDoNotRestart straight away.
type ScheduledService struct {
	name       string
	schedule   Schedule
	runOnStart bool
	runLog     RunLog
	task       Task

	// timeout bounds one run. Zero means the run ends only with ctx.
	timeout time.Duration

	now   func() time.Time
	after func(d time.Duration) (<-chan time.Time, func())
}

// ScheduleOption configures a ScheduledService.
type ScheduleOption func(*ScheduledService)

// RunOnStart runs the task once as soon as the service starts.
func RunOnStart() ScheduleOption {
	return func(s *ScheduledService) { s.runOnStart = true }
}

// WithRunTimeout bounds each run.
func WithRunTimeout(d time.Duration) ScheduleOption {
	return func(s *ScheduledService) { s.timeout = d }
}

// WithRunLog catches up on runs missed while the process was down and
// records every successful run. A log with no entry is seeded with the start
// time, so a first deployment does not run the job immediately.
func WithRunLog(l RunLog) ScheduleOption {
	return func(s *ScheduledService) { s.runLog = l }
}

// NewScheduledService creates a scheduled service.
//
//	days, _ := services.ParseMonthDays("1", 0)
//	svc := services.NewScheduledService("report-purge", days,
//	    func(ctx context.Context) error { _, err := purger.PurgeAll(ctx); return err },
//	    services.WithRunLog(store.NewRunMarker(st, "report-purge")))
//	tree.Add(supervisor.LayerData, svc)
func NewScheduledService(name string, schedule Schedule, task Task, opts ...ScheduleOption) *ScheduledService {
	s := &ScheduledService{
		name:     name,
		schedule: schedule,
		task:     task,
		now:      time.Now,
		after:    realTimer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func realTimer(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

// Serve implements suture.Service.
func (s *ScheduledService) Serve(ctx context.Context) error {
	var next time.Time
	if s.schedule != nil {
		next = s.schedule.Next(s.now())
	}
	if next.IsZero() {
		logging.Info().Str("service", s.name).Msg("Schedule disabled")
		return suture.ErrDoNotRestart
	}
	logging.Info().Str("service", s.name).Time("next_run", next).Msg("Schedule armed")

	if s.runOnStart || s.missedRun(ctx) {
		s.runOnce(ctx)
	}

	for {
		now := s.now()
		if !now.Before(next) {
			s.runOnce(ctx)
			// Run times that passed during a long run are skipped.
			if next = s.schedule.Next(s.now()); next.IsZero() {
				return suture.ErrDoNotRestart
			}
			continue
		}

		fired, stop := s.after(min(next.Sub(now), maxWait))
		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()
		case <-fired:
		}
	}
}

// missedRun reports whether a run time passed since the last recorded run.
func (s *ScheduledService) missedRun(ctx context.Context) bool {
	if s.runLog == nil {
		return false
	}
	now := s.now()
	last, err := s.runLog.LastRun(ctx)
	if err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("Could not read last run, not catching up")
		return false
	}
	if last.IsZero() {
		if err := s.runLog.RecordRun(ctx, now); err != nil {
			logging.Warn().Err(err).Str("service", s.name).Msg("Could not seed run log")
		}
		return false
	}
	due := s.schedule.Next(last)
	if due.IsZero() || due.After(now) {
		return false
	}
	logging.Info().Str("service", s.name).Time("last_run", last).Time("missed", due).Msg("Catching up on a missed run")
	return true
}

func (s *ScheduledService) runOnce(ctx context.Context) {
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	runCtx = logging.ContextWithNewCorrelationID(runCtx)
	log := logging.Ctx(runCtx)

	start := s.now()
	err := s.task(runCtx)
	switch {
	case err == nil:
		log.Info().Str("service", s.name).Dur("took", s.now().Sub(start)).Msg("Scheduled run finished")
		if s.runLog != nil {
			if rerr := s.runLog.RecordRun(ctx, s.now()); rerr != nil {
				log.Warn().Err(rerr).Str("service", s.name).Msg("Could not record run")
			}
		}
	case errors.Is(err, context.Canceled) && runCtx.Err() != nil:
		log.Info().Str("service", s.name).Msg("Scheduled run canceled")
	default:
		log.Error().Err(err).Str("service", s.name).Dur("took", s.now().Sub(start)).Msg("Scheduled run failed")
	}
}

func (s *ScheduledService) String() string {
	return s.name
}
