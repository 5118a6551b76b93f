// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*ScheduledService)(nil)

func day(month time.Month, d, hour int) time.Time {
	return time.Date(2026, month, d, hour, 0, 0, 0, time.UTC)
}

// fakeClock drives a ScheduledService: the service parks on fire until
// advance moves the clock.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits chan time.Duration
	fire  chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, waits: make(chan time.Duration, 16), fire: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) (<-chan time.Time, func()) {
	c.waits <- d
	return c.fire, func() {}
}

func (c *fakeClock) advance(t *testing.T, to time.Time) {
	t.Helper()
	select {
	case <-c.waits:
	case <-time.After(2 * time.Second):
		t.Fatal("service is not sleeping")
	}
	c.mu.Lock()
	c.now = to
	c.mu.Unlock()
	c.fire <- to
}

func (c *fakeClock) install(s *ScheduledService) *ScheduledService {
	s.now = c.Now
	s.after = c.After
	return s
}

type memRunLog struct {
	mu       sync.Mutex
	last     time.Time
	recorded []time.Time
}

func (l *memRunLog) LastRun(context.Context) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, nil
}

func (l *memRunLog) RecordRun(_ context.Context, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = at
	l.recorded = append(l.recorded, at)
	return nil
}

func (l *memRunLog) snapshot() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.recorded)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// serve runs svc in the background and returns a stop function that waits
// for Serve to return.
func serve(t *testing.T, svc *ScheduledService) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancel")
			return nil
		}
	}
}

func TestScheduledService_Disabled(t *testing.T) {
	for _, sched := range []Schedule{nil, Every(0), MonthDays{}} {
		var runs atomic.Int32
		svc := NewScheduledService("report-purge", sched, func(context.Context) error {
			runs.Add(1)
			return nil
		}, RunOnStart())

		if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve(%v) = %v, want ErrDoNotRestart", sched, err)
		}
		if runs.Load() != 0 {
			t.Errorf("disabled schedule %v ran its task", sched)
		}
	}
}

func TestScheduledService_FiresOnMonthDay(t *testing.T) {
	clock := newFakeClock(day(time.March, 5, 12))
	var runs atomic.Int32
	svc := clock.install(NewScheduledService("report-purge", MonthDays{Days: []int{1}}, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	stop := serve(t, svc)

	clock.advance(t, day(time.March, 20, 0))
	clock.advance(t, day(time.March, 31, 23))
	if runs.Load() != 0 {
		t.Fatalf("ran %d times before the 1st", runs.Load())
	}
	clock.advance(t, day(time.April, 1, 0))
	waitFor(t, func() bool { return runs.Load() == 1 })

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestScheduledService_RestartKeepsRunDate(t *testing.T) {
	var runs atomic.Int32
	task := func(context.Context) error {
		runs.Add(1)
		return nil
	}
	purgeDays := MonthDays{Days: []int{1}}

	// First process: up from the 25th, restarted on the 28th.
	clock := newFakeClock(day(time.March, 25, 9))
	stop := serve(t, clock.install(NewScheduledService("report-purge", purgeDays, task)))
	clock.advance(t, day(time.March, 28, 9))
	_ = stop()

	// Second process: still fires on the 1st, three days after its start.
	clock = newFakeClock(day(time.March, 28, 9))
	stop = serve(t, clock.install(NewScheduledService("report-purge", purgeDays, task)))
	clock.advance(t, day(time.April, 1, 0))
	waitFor(t, func() bool { return runs.Load() == 1 })
	_ = stop()
}

func TestScheduledService_CatchesUpMissedRun(t *testing.T) {
	tests := []struct {
		name    string
		last    time.Time
		wantRun bool
	}{
		{"down over the 1st", day(time.February, 1, 0), true},
		{"ran on the 1st", day(time.March, 1, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := day(time.March, 5, 12)
			clock := newFakeClock(start)
			log := &memRunLog{last: tt.last}
			var runs atomic.Int32
			svc := clock.install(NewScheduledService("report-purge", MonthDays{Days: []int{1}}, func(context.Context) error {
				runs.Add(1)
				return nil
			}, WithRunLog(log)))
			stop := serve(t, svc)

			// The service sleeps once the start-up decision is made.
			clock.advance(t, start.Add(time.Minute))
			_ = stop()

			if got := runs.Load() == 1; got != tt.wantRun {
				t.Fatalf("runs = %d, want catch-up %v", runs.Load(), tt.wantRun)
			}
			if tt.wantRun {
				if rec := log.snapshot(); len(rec) != 1 || !rec[0].Equal(start) {
					t.Errorf("recorded = %v, want [%v]", rec, start)
				}
			}
		})
	}
}

func TestScheduledService_SeedsEmptyRunLog(t *testing.T) {
	start := day(time.March, 5, 12)
	clock := newFakeClock(start)
	log := &memRunLog{}
	var runs atomic.Int32
	svc := clock.install(NewScheduledService("usage-refresh", MonthDays{Days: []int{10, 20, 30}}, func(context.Context) error {
		runs.Add(1)
		return errors.New("upstream 503")
	}, WithRunLog(log)))
	stop := serve(t, svc)

	clock.advance(t, day(time.March, 10, 0))
	waitFor(t, func() bool { return runs.Load() == 1 })
	_ = stop()

	// Seeded at start; the failed run is not recorded.
	if rec := log.snapshot(); len(rec) != 1 || !rec[0].Equal(start) {
		t.Errorf("recorded = %v, want only the seed %v", rec, start)
	}
}

func TestScheduledService_RunTimeout(t *testing.T) {
	got := make(chan error, 1)
	svc := NewScheduledService("badger-gc", Every(time.Hour), func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	}, RunOnStart(), WithRunTimeout(20*time.Millisecond))
	stop := serve(t, svc)
	defer stop()

	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("task ctx err = %v, want DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run timeout not applied")
	}
}

func TestMonthDaysNext(t *testing.T) {
	tests := []struct {
		name  string
		sched MonthDays
		from  time.Time
		want  time.Time
	}{
		{"next listed day", MonthDays{Days: []int{10, 20, 30}}, day(time.January, 12, 8), day(time.January, 20, 0)},
		{"strictly after", MonthDays{Days: []int{10, 20, 30}}, day(time.January, 20, 0), day(time.January, 30, 0)},
		{"30 skipped in February", MonthDays{Days: []int{10, 20, 30}}, day(time.February, 20, 0), day(time.March, 10, 0)},
		{"unsorted days", MonthDays{Days: []int{30, 10}}, day(time.April, 11, 0), day(time.April, 30, 0)},
		{"year rollover", MonthDays{Days: []int{1}}, day(time.December, 30, 1), time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"31 only", MonthDays{Days: []int{31}}, day(time.April, 1, 0), day(time.May, 31, 0)},
		{"run hour", MonthDays{Days: []int{1}, Hour: 3}, day(time.June, 1, 2), day(time.June, 1, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sched.Next(tt.from); !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}

	if !(MonthDays{}).Next(day(time.May, 1, 0)).IsZero() {
		t.Error("empty MonthDays should never fire")
	}
}

func TestParseMonthDays(t *testing.T) {
	got, err := ParseMonthDays(" 20,10 , 30,10", 2)
	if err != nil {
		t.Fatalf("ParseMonthDays() error = %v", err)
	}
	if !slices.Equal(got.Days, []int{10, 20, 30}) || got.Hour != 2 {
		t.Errorf("ParseMonthDays() = %+v", got)
	}

	for _, off := range []string{"", "off", "OFF"} {
		got, err := ParseMonthDays(off, 0)
		if err != nil || len(got.Days) != 0 {
			t.Errorf("ParseMonthDays(%q) = %+v, %v; want disabled", off, got, err)
		}
	}

	for _, bad := range []struct {
		list string
		hour int
	}{{"0", 0}, {"32", 0}, {"1,x", 0}, {"1", 24}, {"1", -1}} {
		if _, err := ParseMonthDays(bad.list, bad.hour); err == nil {
			t.Errorf("ParseMonthDays(%q, %d) accepted", bad.list, bad.hour)
		}
	}
}
