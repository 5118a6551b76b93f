// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package services

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Schedule yields the run times of a ScheduledService.
type Schedule interface {
	// Next returns the first run time strictly after t, or the zero time if
	// the schedule never fires.
	Next(t time.Time) time.Time
}

// Every fires a fixed duration after the previous run. A non-positive
// duration never fires.
type Every time.Duration

func (e Every) Next(t time.Time) time.Time {
	if e <= 0 {
		return time.Time{}
	}
	return t.Add(time.Duration(e))
}

// MonthDays fires at Hour:00 on the listed days of every month, in Location
// (UTC when nil). A day the month does not have is skipped: 30 never fires
// in February. Restarting the process does not move the run times.
type MonthDays struct {
	Days     []int
	Hour     int
	Location *time.Location
}

func (m MonthDays) Next(t time.Time) time.Time {
	if len(m.Days) == 0 {
		return time.Time{}
	}
	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	days := slices.Clone(m.Days)
	slices.Sort(days)

	local := t.In(loc)
	// Any day 1..29 occurs within the next two months; 30 and 31 within a
	// year.
	for i := 0; i <= 12; i++ {
		month := time.Date(local.Year(), local.Month()+time.Month(i), 1, 0, 0, 0, 0, loc)
		for _, d := range days {
			at := time.Date(month.Year(), month.Month(), d, m.Hour, 0, 0, 0, loc)
			if at.Month() != month.Month() {
				continue
			}
			if at.After(t) {
				return at
			}
		}
	}
	return time.Time{}
}

// ParseMonthDays parses a comma-separated day-of-month list such as
// "10,20,30". An empty or "off" list gives a schedule that never fires.
func ParseMonthDays(list string, hour int) (MonthDays, error) {
	if hour < 0 || hour > 23 {
		return MonthDays{}, fmt.Errorf("run hour %d out of range 0-23", hour)
	}
	list = strings.TrimSpace(list)
	if list == "" || strings.EqualFold(list, "off") {
		return MonthDays{Hour: hour}, nil
	}

	var days []int
	for _, part := range strings.Split(list, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return MonthDays{}, fmt.Errorf("day of month %q: %w", part, err)
		}
		if d < 1 || d > 31 {
			return MonthDays{}, fmt.Errorf("day of month %d out of range 1-31", d)
		}
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	return MonthDays{Days: days, Hour: hour}, nil
}
