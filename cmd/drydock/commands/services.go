// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/deploy"
)

func statusCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:    "status",
		Summary: "Show the active release and the state of each process",
		Usage:   "drydock status",
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("status takes no arguments")
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

			report, err := operations.Status(a.ctx)
			if err != nil {
				return commandError(err)
			}
			p := a.printer()
			current := report.Current
			if current == "" {
				current = "none"
			}
			p.println(fmt.Sprintf("%s on %s", project.Plan.App, project.Host))
			p.faint("local version %s, active release %s", project.Plan.Version, current)

			rows := make([][]string, len(report.Processes))
			for i, status := range report.Processes {
				state := "unknown"
				if status.Total > 1 {
					state = fmt.Sprintf("%d/%d active", status.Running, status.Total)
				}
				for _, unit := range status.Units {
					if status.Total == 1 && unit.Checked && unit.State != "" {
						state = unit.State
					}
				}
				rows[i] = []string{status.Process, state}
			}
			p.table([]string{"PROCESS", "STATE"}, rows, func(row int) bool { return !report.Processes[row].Up() })
			return nil
		},
	}
}

// controlCommand builds start, stop and restart.
func controlCommand(a *app, verb, summary, done string) *cli.Command {
	return &cli.Command{
		Name:    verb,
		Summary: summary,
		Description: `Without a process every configured process is affected. A process may
carry a unit suffix, as in "web.socket" or "cleanup.timer", to act on
that unit alone.`,
		Usage:    "drydock " + verb + " [process]",
		Examples: []cli.Example{{Description: strings.ToUpper(verb[:1]) + verb[1:] + " the web instances", Command: "drydock " + verb + " web"}},
		Run: func(args []string) error {
			if len(args) > 1 {
				return cli.Validation("%s takes at most one process", verb)
			}
			reference := ""
			if len(args) == 1 {
				reference = args[0]
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

			var names []string
			err = a.withLock(project, verb, func(ctx context.Context) error {
				names, err = operations.Control(ctx, verb, reference)
				return err
			})
			a.record(project, audit.Record{
				Operation: verb,
				Outcome:   outcome(err),
				Details:   map[string]any{"process": reference, "units": names},
			})
			if err != nil {
				return commandError(err)
			}
			p := a.printer()
			p.success("%s %s", done, strings.Join(names, " "))
			return nil
		},
	}
}

func startCommand(a *app) *cli.Command {
	return controlCommand(a, deploy.VerbStart, "Start processes of the active release", "started")
}

func stopCommand(a *app) *cli.Command {
	return controlCommand(a, deploy.VerbStop, "Stop processes of the active release", "stopped")
}

func restartCommand(a *app) *cli.Command {
	return controlCommand(a, deploy.VerbRestart, "Restart processes of the active release", "restarted")
}

func logsCommand(a *app) *cli.Command {
	var options deploy.LogOptions
	return &cli.Command{
		Name:    "logs",
		Summary: "Show the journal of a process",
		Usage:   "drydock logs [process] [-f] [-n lines] [--level priority] [--since time] [-g pattern]",
		Examples: []cli.Example{
			{Description: "Follow the web instances", Command: "drydock logs web -f"},
			{Description: "Errors of the last hour, across processes", Command: "drydock logs --level err --since '1 hour ago'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("logs", pflag.ContinueOnError)
			flagSet.BoolVarP(&options.Follow, "follow", "f", false, "keep printing new lines")
			flagSet.IntVarP(&options.Lines, "lines", "n", deploy.DefaultLogLines, "number of lines to show")
			flagSet.StringVar(&options.Level, "level", "", "lowest priority to show (emerg, alert, crit, err, warning, notice, info, debug)")
			flagSet.StringVar(&options.Since, "since", "", "show lines since a time, such as 'yesterday' or '2 hours ago'")
			flagSet.StringVarP(&options.Grep, "grep", "g", "", "show lines matching a pattern, ignoring case")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return cli.Validation("logs takes at most one process")
			}
			if len(args) == 1 {
				options.Process = args[0]
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

			names, err := operations.Logs(a.ctx, options)
			if err != nil {
				return commandError(err)
			}
			a.logger().Debug("journal shown", "units", names)
			return nil
		},
	}
}
