// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

/*
Package supervisor runs the long lived parts of the server under a suture v4
tree.

	clashops
	├── data-layer
	│   ├── ScheduledService "badger-gc"       (badger backend only)
	│   ├── ScheduledService "usage-refresh"   (schedule.usage_refresh_days)
	│   └── ScheduledService "report-purge"    (schedule.report_purge_days)
	├── messaging-layer
	│   └── events.Auditor                     (events.audit)
	└── api-layer
	    └── HTTPServerService

Supervisor events are logged through sutureslog into the zerolog-backed slog
handler from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	tree.Add(supervisor.LayerData, services.NewScheduledService("report-purge",
	    cfg.ReportPurgeSchedule(), purgeTask,
	    services.WithRunLog(store.NewRunMarker(st, "report-purge"))))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Refresh and purge run on fixed days of the month, so a restart does not
move them. A scheduled service whose schedule never fires returns
suture.ErrDoNotRestart and stays stopped.
*/
package supervisor
