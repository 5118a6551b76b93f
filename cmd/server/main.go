// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/clashops/internal/config"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/store"
	"github.com/tomtom215/clashops/internal/supervisor"
	"github.com/tomtom215/clashops/internal/supervisor/services"
	"github.com/tomtom215/clashops/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingConfig())

	logging.Info().
		Str("store", cfg.Store.Backend).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("events", cfg.Events.Enabled).
		Str("environment", cfg.Server.Environment).
		Msg("Starting ClashOps")
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin; set CORS_ORIGINS for deployments reachable from browsers")
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
	logging.Info().Msg("ClashOps stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	router, err := a.router()
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	// Analyze requests may block up to the long deadline.
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Engine.LongDeadline + time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		return err
	}
	a.addServices(tree, server)

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, u := range report {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop in time")
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) addServices(tree *supervisor.SupervisorTree, server *http.Server) {
	cfg := a.cfg

	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if a.auditor != nil {
		tree.Add(supervisor.LayerMessaging, a.auditor)
	}

	if a.refresher != nil {
		tree.Add(supervisor.LayerData, services.NewScheduledService("usage-refresh",
			cfg.UsageRefreshSchedule(),
			func(ctx context.Context) error {
				_, err := a.refresher.RefreshUsageSnapshot(ctx)
				return err
			},
			services.WithRunTimeout(refreshTimeout),
			services.WithRunLog(&usage.CSVPublisher{Dir: cfg.Usage.SnapshotDir})))
	}

	tree.Add(supervisor.LayerData, services.NewScheduledService("report-purge",
		cfg.ReportPurgeSchedule(),
		func(ctx context.Context) error {
			_, err := a.purger.PurgeAll(ctx)
			return err
		},
		services.WithRunLog(store.NewRunMarker(a.store, "report-purge"))))

	if bs, ok := a.store.(*store.BadgerStore); ok {
		tree.Add(supervisor.LayerData, services.NewScheduledService("badger-gc",
			services.Every(cfg.Schedule.StoreGCInterval),
			func(context.Context) error { return bs.RunGC() }))
	}
}
