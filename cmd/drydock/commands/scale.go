// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"strconv"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/deploy"
)

func scaleCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:    "scale",
		Summary: "Change the number of instances of a process",
		Description: `Start or stop instances of a templated process so that <count> run. The
instances loaded on the host are the starting point. Update the replica
count in the configuration afterwards: the next deploy reconciles the
host to the configured count.

Changing between one instance and several changes the unit file itself
and needs a redeploy.`,
		Usage:    "drydock scale <process> <count>",
		Examples: []cli.Example{{Description: "Run four web instances", Command: "drydock scale web 4"}},
		Run: func(args []string) error {
			if len(args) != 2 {
				return cli.Validation("scale needs a process and a count")
			}
			count, err := strconv.Atoi(args[1])
			if err != nil || count < 1 {
				return cli.Validation("count must be a whole number of at least 1, got %q", args[1]).
					WithHint("To stop a process entirely, remove it from the configuration and redeploy.")
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			offline := &deploy.Operations{Plan: project.Plan, Host: project.Host}
			plan, spec, err := offline.PlanScale(a.ctx, args[0], count)
			if err != nil {
				return configError(err)
			}
			p := a.printer()
			if plan.Reshape {
				return configError(errors.New("changing between one and several instances rewrites the unit file")).
					WithHint("Set processes." + args[0] + ".replicas to " + args[1] + " in the configuration and run 'drydock deploy'.")
			}
			if spec.Socket {
				p.warn("%s is socket activated: every instance shares one socket. Prefer the server's own worker setting.", args[0])
			}

			operations, closeRunner, err := a.open(project)
			if err != nil {
				return err
			}
			defer closeRunner()
			err = a.withLock(project, "scale", func(ctx context.Context) error {
				plan, _, err = operations.PlanScale(ctx, args[0], count)
				if err != nil || plan.Noop() {
					return err
				}
				return operations.Scale(ctx, plan)
			})
			if err == nil && plan.Noop() {
				p.faint("%s already runs %d instance(s)", args[0], count)
				return nil
			}
			a.record(project, audit.Record{
				Operation: "scale",
				Outcome:   outcome(err),
				Details: map[string]any{
					"process": args[0], "from": plan.From, "to": plan.To,
					"started": plan.Start, "stopped": plan.Stop,
				},
			})
			if err != nil {
				return commandError(err)
			}
			p.success("scaled %s from %d to %d", args[0], plan.From, plan.To)
			p.faint("set processes.%s.replicas to %d in the configuration to keep this on the next deploy", args[0], count)
			return nil
		},
	}
}
