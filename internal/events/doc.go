// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package events publishes domain notifications (report created, field
// ready, snapshot published, ...) over Watermill.
//
// Events are informational. Nothing in the report engine waits on them; all
// coordination between requests goes through the record store. A failed
// publish is logged and counted, never returned to the caller.
//
// Two transports are supported:
//
//   - gochannel: in-process, default, no external dependency
//   - nats: core NATS via watermill-nats, either an external server or an
//     embedded nats-server started by the process
//
// Auditor subscribes to the topic and turns every event into a structured log
// line and a counter, and runs as a supervised service.
package events
