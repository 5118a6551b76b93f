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

	"github.com/tomtom215/clashops/internal/report"
)

type createOutput struct {
	RowID        string `json:"row_id"`
	CanonicalKey string `json:"canonical_key"`
	Status       string `json:"status"`
}

func newCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <deck>",
		Short: "Create the report record for a deck",
		Long: `Create the report record for a deck, given as comma-separated card
names. If a record already exists under the same canonical identity it is
reported and left untouched.`,
		Example:       `  clashctl create "Hog Rider,Musketeer,Fireball,The Log,Ice Spirit,Skeletons,Cannon,Ice Golem"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return opts.withEnv(cmd, func(env *Env) error {
				res, err := env.Reports.CreateRecord(cmd.Context(), args[0])
				if err != nil {
					return f.failure(err)
				}
				out := createOutput{RowID: res.RowID, CanonicalKey: res.CanonicalKey, Status: res.Status.String()}
				return f.result(out, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s (%s)\n", out.Status, out.RowID, out.CanonicalKey)
				})
			})
		},
	}
}

type categoryOutput struct {
	Category string `json:"category"`
	State    string `json:"state"`
	Value    string `json:"value,omitempty"`
}

type showOutput struct {
	RowID        string           `json:"row_id"`
	CanonicalKey string           `json:"canonical_key"`
	Categories   []categoryOutput `json:"categories"`
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <deck>",
		Short:         "Show the stored record for a deck",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return opts.withEnv(cmd, func(env *Env) error {
				view, err := env.Reports.Lookup(cmd.Context(), args[0])
				if err != nil {
					return f.failure(err)
				}
				out := showOutput{RowID: view.RowID, CanonicalKey: view.CanonicalKey}
				for _, field := range report.Fields {
					c := categoryOutput{Category: string(field), State: view.States[field].String()}
					if view.States[field] == report.Ready {
						c.Value = view.Values[field]
					}
					out.Categories = append(out.Categories, c)
				}
				return f.result(out, func(w io.Writer) {
					fmt.Fprintf(w, "%s (%s)\n", out.RowID, out.CanonicalKey)
					for _, c := range out.Categories {
						fmt.Fprintf(w, "  %-12s %-8s %s\n", c.Category, c.State, firstLine(c.Value))
					}
				})
			})
		},
	}
}

type analyzeOutput struct {
	Deck     string `json:"deck"`
	Category string `json:"category"`
	Value    string `json:"value"`
}

func newAnalyzeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <deck> <category>",
		Short: "Resolve one analysis category, computing it if needed",
		Long: `Resolve one category of a deck's report. A ready value is returned as is;
otherwise the analysis is computed, or awaited if another process is already
computing it. Categories: ` + categoryNames() + `.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			field, err := report.ParseField(args[1])
			if err != nil {
				return f.failure(err)
			}
			return opts.withEnv(cmd, func(env *Env) error {
				value, err := env.Reports.ResolveField(cmd.Context(), args[0], field)
				if err != nil {
					return f.failure(err)
				}
				out := analyzeOutput{Deck: args[0], Category: string(field), Value: value}
				return f.result(out, func(w io.Writer) { fmt.Fprintln(w, value) })
			})
		},
	}
}

type resetOutput struct {
	Category      string `json:"category"`
	PreviousState string `json:"previous_state"`
	Reset         bool   `json:"reset"`
}

func newResetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <deck> <category>",
		Short: "Clear a stuck pending category",
		Long: `Move a pending category back to absent so the next request recomputes it.
Use it to clear a placeholder left behind by a crashed computation. Categories
in any other state are left alone.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			field, err := report.ParseField(args[1])
			if err != nil {
				return f.failure(err)
			}
			return opts.withEnv(cmd, func(env *Env) error {
				prev, err := env.Reports.ForceReset(cmd.Context(), args[0], field)
				if err != nil {
					return f.failure(err)
				}
				out := resetOutput{Category: string(field), PreviousState: prev.String(), Reset: prev == report.Pending}
				return f.result(out, func(w io.Writer) {
					if out.Reset {
						fmt.Fprintf(w, "%s reset (was pending)\n", out.Category)
						return
					}
					fmt.Fprintf(w, "%s is %s, unchanged\n", out.Category, out.PreviousState)
				})
			})
		},
	}
}

func categoryNames() string {
	names := make([]string, len(report.Fields))
	for i, f := range report.Fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
