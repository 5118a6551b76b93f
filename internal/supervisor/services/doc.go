// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package services adapts long running components to suture.Service.
//
//   - HTTPServerService: the API server, draining in-flight requests on
//     shutdown
//   - ScheduledService: jobs on a Schedule. MonthDays drives usage refresh
//     and report purge; Every drives badger value log GC
//
// The event auditor implements suture.Service itself and is added to the
// tree directly.
package services
