// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendBadger = backendBadger
	BackendRedis  = backendRedis
	BackendMemory = backendMemory
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Badger  BadgerConfig
	Redis   RedisConfig
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendBadger, "":
		return OpenBadger(cfg.Badger)
	case BackendRedis:
		return OpenRedis(ctx, cfg.Redis)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
