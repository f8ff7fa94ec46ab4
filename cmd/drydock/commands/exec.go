// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"strings"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/config"
	"github.com/drydock-dev/drydock/lib/remote"
)

// interactive is implemented by runners that can attach the local
// terminal, which is the SSH session.
type interactive interface {
	Interactive(ctx context.Context, command string) (int, error)
}

func execCommand(a *app) *cli.Command {
	var sudo bool
	return &cli.Command{
		Name:    "exec",
		Summary: "Run a command in the active release",
		Description: `Run a command on the host from the active release's directory, attached
to this terminal. The exit status is the remote command's.`,
		Usage: "drydock exec [--sudo] [--] <command...>",
		Examples: []cli.Example{
			{Description: "Open a Python shell with the release's virtualenv", Command: "drydock exec -- .venv/bin/python"},
			{Description: "Follow the web process's journal", Command: "drydock exec --sudo -- journalctl -fu 'myapp-web@*'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("exec", pflag.ContinueOnError)
			flagSet.BoolVar(&sudo, "sudo", false, "run the command as root")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("exec needs a command").WithHint("Use 'drydock shell' for an interactive shell.")
			}
			command := strings.Join(args, " ")
			if sudo {
				command = "sudo " + command
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			return a.attach(project, command)
		},
	}
}

func shellCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Summary: "Open a login shell on the host",
		Usage:   "drydock shell",
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("shell takes no arguments").WithHint("Use 'drydock exec' to run a command.")
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			return a.attach(project, "")
		},
	}
}

// attach runs command interactively in the application directory and
// exits with its status. An empty command starts a login shell.
func (a *app) attach(project *config.Project, command string) error {
	runner, err := a.connect(a.ctx, project, a.logger())
	if err != nil {
		return commandError(err)
	}
	if closer, ok := runner.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	session, ok := runner.(interactive)
	if !ok {
		return cli.Internal("connection to %s cannot attach a terminal", project.Host)
	}

	layout := project.Host.Layout(project.Plan.App)
	dir := layout.CurrentLink()
	if command == "" {
		dir = layout.AppDir
	}
	defer runner.Cd(dir)()

	code, err := session.Interactive(a.ctx, command)
	if err != nil {
		return commandError(err)
	}
	if code != 0 {
		return &cli.ExitError{Code: code}
	}
	return nil
}

var _ interactive = (*remote.Session)(nil)
