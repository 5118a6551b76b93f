// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

/*
Package config loads ClashOps configuration with koanf.

# Configuration Sources

Sources are layered, later ones overriding earlier ones:
  - Struct defaults (defaultConfig)
  - A YAML file: CONFIG_PATH, else config.yaml in the working directory,
    else /etc/clashops/config.yaml
  - Environment variables, mapped explicitly (see envMappings)

# Sections

  - server, logging
  - store: badger, redis or memory backend, and the report partition
  - engine: poll interval, short and long deadlines, conditional writes
  - analysis: completion endpoint, per-category models, card knowledge file
  - usage: Clash Royale crawl pacing and the snapshot directory
  - purge, events, security
  - schedule: run days of the month for refresh and purge, store GC interval

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	backend, err := store.Open(ctx, cfg.StoreConfig())

Validate runs per section and reports the first failure using the
environment variable name an operator would set.
*/
package config
