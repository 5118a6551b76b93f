// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Command server runs the ClashOps deck analysis cache: the report API, the
// scheduled usage refresh and report purge, and the event audit log, all
// under one suture supervisor tree.
//
// Configuration is read from config.yaml (or CONFIG_PATH) and environment
// variables; see internal/config.
package main
