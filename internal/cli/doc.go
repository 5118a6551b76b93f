// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package cli implements clashctl, the operator command line. Commands work
// directly against the configured report store, so with the badger backend
// the server must be stopped first (badger holds a directory lock).
package cli
