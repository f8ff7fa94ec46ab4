// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/config"
	"github.com/drydock-dev/drydock/lib/deploy"
	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/secrets"
)

func deployCommand(a *app) *cli.Command {
	var (
		fullRestart bool
		noRollback  bool
		version     string
	)
	return &cli.Command{
		Name:    "deploy",
		Summary: "Build, ship and activate a release",
		Description: `Build the application, resolve secrets into its .env, bundle it, upload
the bundle, install and activate it, then restart the processes whose
units changed and wait until every unit is active.

A failure after installation rolls back to the release that was active
before, unless --no-rollback is given. The exit status tells which
stage failed: 1 configuration, 2 build or bundle, 3 upload, 4 install,
5 service start, 6 failed rollback, 7 lost connection.`,
		Usage: "drydock deploy [flags]",
		Examples: []cli.Example{
			{Description: "Deploy the configured version", Command: "drydock deploy"},
			{Description: "Deploy a specific version and restart everything", Command: "drydock deploy --version 1.4.0 --full-restart"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("deploy", pflag.ContinueOnError)
			flagSet.BoolVar(&fullRestart, "full-restart", false, "restart every process, changed or not")
			flagSet.BoolVar(&noRollback, "no-rollback", false, "leave a failed release in place for inspection")
			flagSet.StringVar(&version, "version", "", "version to deploy, overriding the configuration")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("deploy takes no arguments, got %q", args)
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if version != "" {
				cfg.Version = version
			}
			project, err := validate(cfg)
			if err != nil {
				return err
			}
			project.Plan.FullRestart = fullRestart
			project.Plan.NoRollback = noRollback
			return a.deploy(project)
		},
	}
}

func (a *app) deploy(project *config.Project) error {
	logger := a.logger().With("app", project.Plan.App, "version", project.Plan.Version)

	source, err := secrets.New(project.Secrets, &remote.Local{Logger: logger, Stdout: io.Discard, Stderr: a.stderr})
	if err != nil {
		return configError(err)
	}
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}

	observers := deploy.MultiObserver{deploy.LogObserver{Logger: logger}}
	if project.MetricsTextfile != "" {
		observers = append(observers, deploy.NewMetricsObserver(project.Plan.App, project.MetricsTextfile, logger))
	}

	var result deploy.Result
	err = a.withLock(project, "deploy", func(ctx context.Context) error {
		pipeline := &deploy.Pipeline{
			Plan: project.Plan,
			Host: project.Host,
			Connect: func(ctx context.Context) (remote.Runner, error) {
				return a.connect(ctx, project, logger)
			},
			Local:    &remote.Local{Logger: logger, Stdout: a.stdout, Stderr: a.stderr},
			Secrets:  source,
			Clock:    a.clock,
			Logger:   logger,
			Observer: observers,
		}
		result = pipeline.Run(ctx)
		return nil
	})
	if err != nil {
		return err
	}

	a.record(project, audit.Record{
		Operation: "deploy",
		Version:   result.Version,
		Outcome:   string(result.Outcome),
		Details:   deployDetails(result),
	})
	a.printer().deploySummary(project.Plan.App, project.Host.String(), result)
	if code := deploy.ExitCode(result); code != 0 {
		return &cli.ExitError{Code: code}
	}
	return nil
}

func deployDetails(result deploy.Result) map[string]any {
	details := map[string]any{
		"previous":        result.Previous,
		"duration_ms":     result.Duration.Milliseconds(),
		"stage":           string(result.Stage),
		"checksum":        result.Checksum,
		"size":            result.Size,
		"upload_attempts": result.UploadAttempts,
	}
	if len(result.Restarted) > 0 {
		details["restarted"] = result.Restarted
	}
	if len(result.Stopped) > 0 {
		details["stopped"] = result.Stopped
	}
	if len(result.Pruned) > 0 {
		details["pruned"] = result.Pruned
	}
	if result.Err != nil {
		details["error"] = result.Err.Error()
	}
	if result.RollbackErr != nil {
		details["rollback_error"] = result.RollbackErr.Error()
	}
	return details
}
