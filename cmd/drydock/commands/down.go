// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/deploy"
)

func downCommand(a *app) *cli.Command {
	var full, yes bool
	return &cli.Command{
		Name:    "down",
		Summary: "Stop and uninstall the application",
		Description: `Run the active release's uninstall script, which stops and removes its
units and webserver configuration, and remove the "current" link.
Release archives stay on the host so a later deploy or rollback can use
them. With --full the whole application directory is deleted.`,
		Usage: "drydock down [--full] [--yes]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("down", pflag.ContinueOnError)
			flagSet.BoolVar(&full, "full", false, "also delete every release and the application directory")
			flagSet.BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("down takes no arguments")
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			if !yes {
				question := fmt.Sprintf("Stop %s on %s?", project.Plan.App, project.Host)
				if full {
					question = fmt.Sprintf("Stop %s on %s and delete %s?", project.Plan.App, project.Host,
						project.Host.Layout(project.Plan.App).AppDir)
				}
				accepted, err := a.confirm(question)
				if err != nil {
					return commandError(err)
				}
				if !accepted {
					a.printer().faint("teardown aborted")
					return nil
				}
			}

			operations, closeRunner, err := a.open(project)
			if err != nil {
				return err
			}
			defer closeRunner()
			var report deploy.DownReport
			err = a.withLock(project, "down", func(ctx context.Context) error {
				report, err = operations.Down(ctx, full)
				return err
			})
			a.record(project, audit.Record{
				Operation: "down",
				Version:   report.Uninstalled,
				Outcome:   outcome(err),
				Details:   map[string]any{"full": full, "purged": report.Purged},
			})
			if err != nil {
				return commandError(err)
			}

			p := a.printer()
			if report.Uninstalled != "" {
				p.success("uninstalled %s %s", project.Plan.App, report.Uninstalled)
			} else {
				p.faint("no active release")
			}
			if report.Purged {
				p.success("deleted %s", project.Host.Layout(project.Plan.App).AppDir)
			}
			return nil
		},
	}
}
