// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/clashops/internal/api"
	"github.com/tomtom215/clashops/internal/auth"
	"github.com/tomtom215/clashops/internal/config"
	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/purge"
	"github.com/tomtom215/clashops/internal/report"
	"github.com/tomtom215/clashops/internal/store"
	"github.com/tomtom215/clashops/internal/usage"
)

// app holds the wired components. Optional parts are nil when disabled.
type app struct {
	cfg *config.Config

	store     store.Backend
	bus       *events.Bus
	notifier  events.Notifier
	reports   *report.Service
	index     *usage.DeckIndex
	refresher *usage.Refresher
	purger    *purge.Purger
	auditor   *events.Auditor
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, notifier: events.Nop{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.store, err = store.Open(ctx, cfg.StoreConfig()); err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	if cfg.Events.Enabled {
		if a.bus, err = events.NewBus(cfg.EventsConfig(), nil); err != nil {
			return nil, fmt.Errorf("start event bus: %w", err)
		}
		a.notifier = a.bus
		if cfg.Events.Audit {
			a.auditor = events.NewAuditor(a.bus)
		}
	}

	resolver, err := report.NewResolver(a.store, cfg.Store.Partition, cfg.Engine.Resolver)
	if err != nil {
		return nil, err
	}
	engine := report.NewEngine(a.store, cfg.EngineConfig(), a.notifier)
	a.reports = report.NewService(a.store, resolver, engine, cfg.Analyzer(), cfg.ServiceConfig(), a.notifier)

	a.purger = purge.NewPurger(a.store, cfg.Store.Partition, cfg.Purge.BatchSize, logging.WithComponent("purge"), a.notifier)

	if a.index, err = usage.OpenDeckIndex(); err != nil {
		return nil, fmt.Errorf("open deck index: %w", err)
	}
	if n, err := a.index.LoadCSV(ctx, cfg.SnapshotPath()); err != nil {
		logging.Warn().Err(err).Str("path", cfg.SnapshotPath()).Msg("Could not load previous usage snapshot")
	} else {
		logging.Info().Int("decks", n).Msg("Usage snapshot loaded")
	}

	crawler, err := usage.NewCrawler(cfg.CrawlerConfig(), logging.WithComponent("usage-crawler"))
	if err != nil {
		logging.Warn().Err(err).Msg("Usage refresh disabled")
	} else {
		a.refresher = usage.NewRefresher(crawler, cfg.Engine.DeckSize, logging.WithComponent("usage"), a.notifier,
			a.index, &usage.CSVPublisher{Dir: cfg.Usage.SnapshotDir})
	}

	return a, nil
}

func (a *app) router() (*api.Router, error) {
	sec := a.cfg.Security
	mode, err := auth.ParseMode(sec.AuthMode)
	if err != nil {
		return nil, err
	}

	var authMW *auth.Middleware
	switch mode {
	case auth.ModeJWT:
		jwtm, err := auth.NewJWTManager(sec.JWTSecret, sec.JWTIssuer, sec.TokenTTL)
		if err != nil {
			return nil, err
		}
		enforcer, err := auth.NewEnforcer(auth.EnforcerConfig{ModelPath: sec.Casbin.ModelPath, PolicyPath: sec.Casbin.PolicyPath})
		if err != nil {
			return nil, err
		}
		authMW = auth.NewMiddleware(mode, jwtm, enforcer)
	default:
		logging.Warn().Msg("Admin authentication is DISABLED (AUTH_MODE=none); admin routes are public")
		authMW = auth.NewMiddleware(auth.ModeNone, nil, nil)
	}

	deps := api.Dependencies{
		Reports:        a.reports,
		Decks:          a.index,
		Purger:         a.purger,
		RefreshTimeout: refreshTimeout,
		Checks:         a.readinessChecks(),
	}
	// A nil *usage.Refresher in the interface would not compare equal to nil.
	if a.refresher != nil {
		deps.Refresher = a.refresher
	}

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = sec.CORSOrigins
	mw.RateLimitRequests = sec.RateLimitReqs
	mw.RateLimitWindow = sec.RateLimitWindow
	mw.RateLimitDisabled = sec.RateLimitDisabled

	return api.NewRouter(api.NewHandler(deps), authMW, mw), nil
}

const (
	readinessRow = "__readiness_check__"

	// refreshTimeout bounds one crawl, scheduled or admin-triggered.
	refreshTimeout = 30 * time.Minute
)

func (a *app) readinessChecks() []api.ReadinessCheck {
	checks := []api.ReadinessCheck{{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := a.store.Get(ctx, a.cfg.Store.Partition, readinessRow)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		},
	}, {
		Name: "deck_index",
		Check: func(ctx context.Context) error {
			_, err := a.index.Count(ctx)
			return err
		},
	}}
	return checks
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing deck index")
		}
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing report store")
		}
	}
}
