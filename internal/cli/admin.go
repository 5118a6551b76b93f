// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/clashops/internal/auth"
	"github.com/tomtom215/clashops/internal/config"
	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/usage"
)

func newPurgeCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every report record",
		Long: `Delete every report record in the configured partition. The purge is not
transactional; if it is interrupted, run it again to finish.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := opts.formatter(cmd)
			if !yes {
				return f.failure(&ExitError{Code: ExitCommandError, Message: "refusing to purge without --yes"})
			}
			return opts.withEnv(cmd, func(env *Env) error {
				res, err := env.Purger.PurgeAll(cmd.Context())
				if err != nil {
					return f.failure(err)
				}
				if perr := f.result(res, func(w io.Writer) {
					fmt.Fprintf(w, "deleted %d of %d records (%d failed)\n", res.Deleted, res.Scanned, res.Failed)
				}); perr != nil {
					return perr
				}
				if res.Failed > 0 {
					return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d records could not be deleted", res.Failed)}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}

func newRefreshCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Crawl top clans and rewrite the usage snapshot",
		Long: `Crawl the top clans' members, aggregate their current decks and rewrite
the usage snapshot CSV. A running server picks the new file up on its next
start; use the admin API to refresh a running server in place.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := opts.formatter(cmd)
			cfg, err := opts.config()
			if err != nil {
				return f.failure(err)
			}
			source, err := opts.NewSource(cfg)
			if err != nil {
				return f.failure(&ExitError{Code: ExitCommandError, Message: "usage crawler", Err: err})
			}
			publisher := &usage.CSVPublisher{Dir: cfg.Usage.SnapshotDir}
			refresher := usage.NewRefresher(source, cfg.Engine.DeckSize, logging.WithComponent("usage"), events.Nop{}, publisher)
			n, err := refresher.RefreshUsageSnapshot(cmd.Context())
			if err != nil {
				return f.failure(err)
			}
			out := map[string]interface{}{"decks": n, "path": publisher.Path()}
			return f.result(out, func(w io.Writer) {
				fmt.Fprintf(w, "wrote %d decks to %s\n", n, publisher.Path())
			})
		},
	}
}

func newDecksCommand(opts *RootOptions) *cobra.Command {
	var q usage.Query
	cmd := &cobra.Command{
		Use:           "decks",
		Short:         "List the most used decks from the usage snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := opts.formatter(cmd)
			if q.Limit < 1 || q.Limit > usage.MaxLimit {
				return f.failure(&ExitError{Code: ExitCommandError, Message: fmt.Sprintf("--limit must be between 1 and %d", usage.MaxLimit)})
			}
			cfg, err := opts.config()
			if err != nil {
				return f.failure(err)
			}
			index, err := usage.OpenDeckIndex()
			if err != nil {
				return f.failure(err)
			}
			defer func() { _ = index.Close() }()
			if _, err := index.LoadCSV(cmd.Context(), cfg.SnapshotPath()); err != nil {
				return f.failure(err)
			}
			rows, err := index.Top(cmd.Context(), q)
			if err != nil {
				return f.failure(err)
			}
			return f.result(rows, func(w io.Writer) {
				if len(rows) == 0 {
					fmt.Fprintln(w, "no decks")
					return
				}
				for _, r := range rows {
					fmt.Fprintf(w, "%5d  %s\n", r.Score, strings.Join(r.Cards, ", "))
				}
			})
		},
	}
	cmd.Flags().StringVar(&q.Card, "card", "", "only decks containing this card")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "maximum number of decks")
	return cmd
}

func newTokenCommand(opts *RootOptions) *cobra.Command {
	var subject, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token",
		Long: `Mint a signed token for the admin API using the configured JWT secret.
Roles are matched against the authorization policy; the bundled policy knows
admin (all admin routes) and operator (usage refresh only).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := opts.formatter(cmd)
			cfg, err := opts.config()
			if err != nil {
				return f.failure(err)
			}
			sec := cfg.Security
			m, err := auth.NewJWTManager(sec.JWTSecret, sec.JWTIssuer, sec.TokenTTL)
			if err != nil {
				return f.failure(&ExitError{Code: ExitCommandError, Message: "jwt", Err: err})
			}
			token, err := m.GenerateToken(subject, role)
			if err != nil {
				return f.failure(err)
			}
			return f.result(map[string]string{"token": token}, func(w io.Writer) { fmt.Fprintln(w, token) })
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "clashctl", "token subject")
	cmd.Flags().StringVar(&role, "role", "admin", "policy role")
	return cmd
}

// newCrawlerSource is the default RootOptions.NewSource.
func newCrawlerSource(cfg *config.Config) (usage.Source, error) {
	crawler, err := usage.NewCrawler(cfg.CrawlerConfig(), logging.WithComponent("usage-crawler"))
	if err != nil {
		return nil, err
	}
	return crawler, nil
}
