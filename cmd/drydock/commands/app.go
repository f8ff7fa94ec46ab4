// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/clock"
	"github.com/drydock-dev/drydock/lib/config"
	"github.com/drydock-dev/drydock/lib/deploy"
	"github.com/drydock-dev/drydock/lib/lock"
	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/secret"
)

// sudoPasswordVariable holds the sudo password for key and agent
// logins. Password logins reuse the login password.
const sudoPasswordVariable = "DRYDOCK_SUDO_PASSWORD"

// defaultLockWait bounds how long a command waits for another holder
// of the deploy lock.
const defaultLockWait = 2 * time.Minute

// app is the state shared by every command of one invocation.
type app struct {
	ctx context.Context

	configPath string
	verbose    bool
	noColor    bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// terminal reports whether stdout is a terminal; it enables color
	// and the interactive confirmation.
	terminal bool

	clock    clock.Clock
	lockWait time.Duration

	// connect opens the connection to the project's host.
	connect func(ctx context.Context, project *config.Project, logger *slog.Logger) (remote.Runner, error)

	// getenv reads the process environment.
	getenv func(string) string

	log *slog.Logger
}

func (a *app) logger() *slog.Logger {
	if a.log == nil {
		a.log = cli.NewCommandLogger(a.verbose)
	}
	return a.log
}

// loadConfig finds and parses the configuration file.
func (a *app) loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, cli.Internal("finding the working directory: %w", err)
	}
	path, err := config.Find(a.configPath, dir)
	if err != nil {
		return nil, cli.NotFound("%w", err).
			WithHint("Pass --config, set DRYDOCK_CONFIG, or create drydock.yaml in this directory.")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, configError(err)
	}
	a.logger().Debug("loaded configuration", "path", path)
	return cfg, nil
}

// project loads and validates the configuration.
func (a *app) project() (*config.Project, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return validate(cfg)
}

func validate(cfg *config.Config) (*config.Project, error) {
	project, err := cfg.Project()
	if err != nil {
		return nil, configError(err)
	}
	return project, nil
}

func configError(err error) *cli.ToolError {
	return &cli.ToolError{Category: cli.CategoryValidation, Err: err, Code: 1}
}

// dialHost opens an SSH session to the project's host.
func dialHost(ctx context.Context, project *config.Project, logger *slog.Logger) (remote.Runner, error) {
	options := remote.DialOptions{Logger: logger}
	if _, ok := os.LookupEnv(sudoPasswordVariable); ok {
		password, err := secret.FromEnv(sudoPasswordVariable)
		if err != nil {
			return nil, err
		}
		options.SudoPassword = password
	}
	return remote.Dial(ctx, project.Host, options)
}

// open connects to the host and returns the operations for project.
// The caller closes the returned runner.
func (a *app) open(project *config.Project) (*deploy.Operations, func(), error) {
	runner, err := a.connect(a.ctx, project, a.logger())
	if err != nil {
		return nil, nil, commandError(err)
	}
	closeRunner := func() {
		if closer, ok := runner.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				a.logger().Warn("closing connection", "error", err)
			}
		}
	}
	operations := &deploy.Operations{
		Plan:   project.Plan,
		Host:   project.Host,
		Runner: runner,
		Clock:  a.clock,
		Logger: a.logger(),
	}
	return operations, closeRunner, nil
}

// username is the local login name recorded in locks and audit records.
func (a *app) username() string {
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	if name := a.getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

func (a *app) owner(operation string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return fmt.Sprintf("%s@%s %s", a.username(), hostname, operation)
}

// withLock runs fn while holding the application's deploy lock. Without
// lock.redis_url it runs fn directly. The lease is extended while fn
// runs so long deploys keep it.
func (a *app) withLock(project *config.Project, operation string, fn func(ctx context.Context) error) error {
	if project.LockURL == "" {
		return fn(a.ctx)
	}
	locker, err := lock.Dial(a.ctx, project.LockURL, a.clock, a.logger())
	if err != nil {
		return cli.Transient("%w", err).
			WithHint("Check lock.redis_url, or remove it to run without a deploy lock.")
	}
	defer locker.Close()

	ttl := project.LockTTL
	if ttl <= 0 {
		ttl = lock.DefaultTTL
	}
	waitCtx, cancelWait := context.WithTimeout(a.ctx, a.lockWait)
	lease, err := locker.Acquire(waitCtx, project.Plan.App, a.owner(operation), ttl)
	cancelWait()
	if err != nil {
		if a.ctx.Err() != nil {
			return &cli.ExitError{Code: 130}
		}
		return cli.Conflict("%w", err).
			WithHint("Another drydock command is working on this application. Retry when it finishes.")
	}

	keepalive, stop := context.WithCancel(a.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := a.clock.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-keepalive.Done():
				return
			case <-ticker.C:
				if err := lease.Extend(keepalive, ttl); err != nil && keepalive.Err() == nil {
					a.logger().Error("extending deploy lock", "lock", project.Plan.App, "error", err)
				}
			}
		}
	}()
	defer func() {
		stop()
		<-done
		if err := lease.Release(context.WithoutCancel(a.ctx)); err != nil {
			a.logger().Warn("releasing deploy lock", "lock", project.Plan.App, "error", err)
		}
	}()
	return fn(a.ctx)
}

// record appends an audit record. Audit failures are logged, never
// returned: the operation already happened.
func (a *app) record(project *config.Project, record audit.Record) {
	if project.AuditPath == "" {
		return
	}
	log, err := audit.Open(project.AuditPath, a.clock, a.logger())
	if err != nil {
		a.logger().Warn("opening audit log", "path", project.AuditPath, "error", err)
		return
	}
	defer log.Close()

	record.User = a.username()
	record.Host = project.Host.String()
	record.App = project.Plan.App
	if err := log.Record(context.WithoutCancel(a.ctx), record); err != nil {
		a.logger().Warn("writing audit record", "operation", record.Operation, "error", err)
	}
}

// outcome is the audit outcome for a command error.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return "failed"
}

// commandError converts library errors into categorized CLI errors
// carrying the pipeline's exit codes and hints.
func commandError(err error) error {
	if err == nil {
		return nil
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return err
	}

	var stageErr *deploy.StageError
	if errors.As(err, &stageErr) {
		return &cli.ToolError{
			Category: category(stageErr.Kind),
			Err:      err,
			Hints:    stageErr.Hints,
			Code:     deploy.KindExitCode(stageErr.Kind),
		}
	}
	if errors.Is(err, context.Canceled) {
		return &cli.ExitError{Code: 130}
	}
	var connection *remote.ConnectionError
	if errors.As(err, &connection) {
		return cli.Transient("%w", err).WithExitCode(deploy.KindExitCode(deploy.KindConnection))
	}
	var configuration *deploy.ConfigurationError
	if errors.As(err, &configuration) {
		return configError(err)
	}
	return cli.Internal("%w", err)
}

func category(kind deploy.Kind) cli.ErrorCategory {
	switch kind {
	case deploy.KindConfiguration:
		return cli.CategoryValidation
	case deploy.KindConnection, deploy.KindUpload, deploy.KindCanceled:
		return cli.CategoryTransient
	}
	return cli.CategoryInternal
}

// expandPath resolves path against the working directory.
func expandPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absolute
}
