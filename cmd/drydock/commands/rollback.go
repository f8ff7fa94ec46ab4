// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/deploy"
)

func rollbackCommand(a *app) *cli.Command {
	var clean, yes bool
	return &cli.Command{
		Name:    "rollback",
		Summary: "Activate an earlier release",
		Description: `Make an earlier release the active one and restart its units. Without a
version, the newest release older than the active one is used.

With --clean, every release newer than the target is deleted from the
host afterwards. That cannot be undone, so drydock asks first unless
--yes is given.`,
		Usage: "drydock rollback [version] [flags]",
		Examples: []cli.Example{
			{Description: "Return to the release before the active one", Command: "drydock rollback"},
			{Description: "Return to 1.2.0 and delete everything newer", Command: "drydock rollback 1.2.0 --clean --yes"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rollback", pflag.ContinueOnError)
			flagSet.BoolVar(&clean, "clean", false, "delete releases newer than the target")
			flagSet.BoolVarP(&yes, "yes", "y", false, "do not ask before deleting releases")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return cli.Validation("rollback takes at most one version, got %d arguments", len(args))
			}
			var version string
			if len(args) == 1 {
				version = args[0]
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

			if clean && !yes {
				newer, err := newerReleases(a.ctx, operations, version)
				if err != nil {
					return commandError(err)
				}
				if len(newer) > 0 {
					accepted, err := a.confirm(fmt.Sprintf("Delete %s from %s?", strings.Join(newer, ", "), project.Host))
					if err != nil {
						return commandError(err)
					}
					if !accepted {
						a.printer().faint("rollback aborted")
						return nil
					}
				}
			}

			var report deploy.RollbackReport
			err = a.withLock(project, "rollback", func(ctx context.Context) error {
				report, err = operations.Rollback(ctx, version, clean)
				return err
			})
			a.record(project, audit.Record{
				Operation: "rollback",
				Version:   report.To,
				Outcome:   outcome(err),
				Details:   map[string]any{"from": report.From, "clean": clean, "removed": report.Removed},
			})
			if err != nil {
				return commandError(err)
			}

			p := a.printer()
			if report.Unchanged {
				p.faint("%s is already the active release", report.To)
				return nil
			}
			p.success("rolled back %s from %s to %s", project.Plan.App, displayVersion(report.From), report.To)
			if len(report.Removed) > 0 {
				p.faint("deleted %s", strings.Join(report.Removed, ", "))
			}
			return nil
		},
	}
}

// newerReleases lists the releases a clean rollback to version would
// delete. An empty version means the one before the active release.
func newerReleases(ctx context.Context, operations *deploy.Operations, version string) ([]string, error) {
	releases := operations.Releases()
	if version == "" {
		previous, err := releases.Previous(ctx)
		if err != nil {
			return nil, &deploy.ConfigurationError{Err: deploy.ErrNoRollbackTarget}
		}
		version = previous
	}
	versions, err := releases.List(ctx)
	if err != nil {
		return nil, err
	}
	index := slices.Index(versions, version)
	if index < 0 {
		return nil, nil
	}
	return versions[:index], nil
}

func displayVersion(version string) string {
	if version == "" {
		return "(none)"
	}
	return version
}
