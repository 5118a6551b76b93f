// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

// Package logging provides the process-wide zerolog logger for ClashOps.
//
// The logger is configured once from main via Init and then used either
// through the package-level helpers or through component loggers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	log := logging.WithComponent("report-engine")
//	log.Info().Str("row", row).Msg("field ready")
//
// Request scoped code should prefer Ctx, which attaches the request and
// correlation IDs carried by the context:
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("analysis timed out")
//
// Libraries that only speak log/slog (suture, watermill) are bridged into the
// same logger with NewSlogLogger.
package logging
