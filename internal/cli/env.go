// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package cli

import (
	"context"
	"fmt"

	"github.com/tomtom215/clashops/internal/config"
	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/purge"
	"github.com/tomtom215/clashops/internal/report"
	"github.com/tomtom215/clashops/internal/store"
)

// Env is what report commands operate on.
type Env struct {
	Config  *config.Config
	Store   store.Backend
	Reports *report.Service
	Purger  *purge.Purger
}

// Close releases the store.
func (e *Env) Close() error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Close()
}

// OpenEnv wires a report service against the configured store. Events are
// not published from the CLI.
func OpenEnv(ctx context.Context, cfg *config.Config) (*Env, error) {
	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return NewEnv(cfg, st, cfg.Analyzer())
}

// NewEnv wires an Env over an open store.
func NewEnv(cfg *config.Config, st store.Backend, analyzer report.Analyzer) (*Env, error) {
	resolver, err := report.NewResolver(st, cfg.Store.Partition, cfg.Engine.Resolver)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	notifier := events.Nop{}
	engine := report.NewEngine(st, cfg.EngineConfig(), notifier)
	return &Env{
		Config:  cfg,
		Store:   st,
		Reports: report.NewService(st, resolver, engine, analyzer, cfg.ServiceConfig(), notifier),
		Purger:  purge.NewPurger(st, cfg.Store.Partition, cfg.Purge.BatchSize, logging.WithComponent("purge"), notifier),
	}, nil
}
