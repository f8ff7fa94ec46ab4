// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the drydock command tree.
package commands

import (
	"context"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/clock"
)

// Root returns the drydock command tree bound to the process's
// terminal. Cancelling ctx aborts the running command.
func Root(ctx context.Context) *cli.Command {
	return newRoot(&app{
		ctx:      ctx,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		terminal: term.IsTerminal(int(os.Stdout.Fd())),
		clock:    clock.Real(),
		lockWait: defaultLockWait,
		connect:  dialHost,
		getenv:   os.Getenv,
	})
}

func newRoot(a *app) *cli.Command {
	return &cli.Command{
		Name:    "drydock",
		Summary: "Deploy an application to one host over SSH",
		Description: `drydock builds a release bundle locally, ships it to one Linux host over
SSH, installs it next to earlier releases, points "current" at it and
runs its processes as systemd units. A failed deploy rolls back to the
release that was active before.`,
		Output: a.stderr,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("drydock", pflag.ContinueOnError)
			flagSet.StringVarP(&a.configPath, "config", "c", a.configPath, "configuration file (default drydock.yaml, drydock.yml or drydock.jsonc)")
			flagSet.BoolVarP(&a.verbose, "verbose", "v", a.verbose, "log debug detail")
			flagSet.BoolVar(&a.noColor, "no-color", a.noColor, "disable colored output")
			return flagSet
		},
		Subcommands: []*cli.Command{
			deployCommand(a),
			rollbackCommand(a),
			releasesCommand(a),
			pruneCommand(a),
			scaleCommand(a),
			statusCommand(a),
			startCommand(a),
			stopCommand(a),
			restartCommand(a),
			logsCommand(a),
			unitsCommand(a),
			execCommand(a),
			shellCommand(a),
			downCommand(a),
			auditCommand(a),
			sealCommand(a),
			versionCommand(a),
		},
	}
}
