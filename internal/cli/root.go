// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/clashops/internal/config"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/usage"
)

// RootOptions holds global flags and the hooks tests replace.
type RootOptions struct {
	ConfigPath string
	Format     string // "text" | "json"
	Verbose    bool

	LoadConfig func() (*config.Config, error)
	OpenEnv    func(ctx context.Context, cfg *config.Config) (*Env, error)
	NewSource  func(cfg *config.Config) (usage.Source, error)
}

// NewRootCommand builds clashctl with the default hooks.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{LoadConfig: config.Load, OpenEnv: OpenEnv, NewSource: newCrawlerSource})
}

// NewRootCommandWith builds clashctl around opts.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clashctl",
		Short: "ClashOps operator CLI",
		Long: `clashctl manages the ClashOps deck analysis cache: create and inspect
report records, resolve or reset categories, purge the report store,
refresh the usage snapshot and mint admin API tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("invalid format %q: must be text or json", opts.Format)}
			}
			if opts.ConfigPath != "" {
				if err := os.Setenv(config.ConfigPathEnvVar, opts.ConfigPath); err != nil {
					return err
				}
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: "+config.ConfigPathEnvVar+" or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(
		newCreateCommand(opts),
		newShowCommand(opts),
		newAnalyzeCommand(opts),
		newResetCommand(opts),
		newPurgeCommand(opts),
		newRefreshCommand(opts),
		newDecksCommand(opts),
		newTokenCommand(opts),
	)
	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *formatter {
	return &formatter{json: o.Format == "json", w: cmd.OutOrStdout()}
}

func (o *RootOptions) config() (*config.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "load configuration", Err: err}
	}
	return cfg, nil
}

// withEnv loads config, opens the env, runs fn and closes the env.
func (o *RootOptions) withEnv(cmd *cobra.Command, fn func(env *Env) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	env, err := o.OpenEnv(cmd.Context(), cfg)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open environment", Err: err}
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Closing store")
		}
	}()
	return fn(env)
}
