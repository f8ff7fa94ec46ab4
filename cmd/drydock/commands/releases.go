// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"strings"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/release"
)

func releasesCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:    "releases",
		Summary: "List the releases on the host",
		Usage:   "drydock releases",
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("releases takes no arguments")
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			operations, closeRunner, err := a.open(project)
			if err != nil {
				return err
			}
			defer closeRunner()

			releases, err := operations.Releases().Releases(a.ctx)
			if err != nil {
				return commandError(err)
			}
			p := a.printer()
			if len(releases) == 0 {
				p.faint("no releases of %s on %s", project.Plan.App, project.Host)
				return nil
			}
			rows := make([][]string, len(releases))
			for i, r := range releases {
				marker := ""
				if r.Current {
					marker = "current"
				}
				rows[i] = []string{r.Version, marker}
			}
			p.table([]string{"VERSION", ""}, rows, func(row int) bool { return releases[row].Current })
			return nil
		},
	}
}

func pruneCommand(a *app) *cli.Command {
	var keep int
	return &cli.Command{
		Name:    "prune",
		Summary: "Delete old releases",
		Description: `Delete all but the newest releases. The active release is always kept.
Without --keep the configured keep_releases applies.`,
		Usage: "drydock prune [--keep n]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("prune", pflag.ContinueOnError)
			flagSet.IntVar(&keep, "keep", 0, "number of releases to keep")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("prune takes no arguments")
			}
			if keep < 0 {
				return cli.Validation("--keep must be at least 1, got %d", keep)
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			if keep == 0 {
				keep = project.Plan.Keep
				if keep == 0 {
					keep = release.DefaultKeep
				}
			}
			if keep < 0 {
				a.printer().faint("pruning is disabled (keep_releases: 0); pass --keep to prune anyway")
				return nil
			}
			operations, closeRunner, err := a.open(project)
			if err != nil {
				return err
			}
			defer closeRunner()

			var removed []string
			err = a.withLock(project, "prune", func(ctx context.Context) error {
				removed, err = operations.Releases().Prune(ctx, keep)
				return err
			})
			a.record(project, audit.Record{
				Operation: "prune",
				Outcome:   outcome(err),
				Details:   map[string]any{"keep": keep, "removed": removed},
			})
			if err != nil {
				return commandError(err)
			}
			p := a.printer()
			if len(removed) == 0 {
				p.faint("nothing to prune")
				return nil
			}
			p.success("deleted %s", strings.Join(removed, ", "))
			return nil
		},
	}
}
