// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drydock-dev/drydock/lib/bundle"
	"github.com/drydock-dev/drydock/lib/clock"
	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/release"
	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/secret"
	"github.com/drydock-dev/drydock/lib/secrets"
	"github.com/drydock-dev/drydock/lib/unit"
	"github.com/drydock-dev/drydock/lib/webserver"
)

// Result is what a run produced. Err and RollbackErr are both kept
// when a rollback fails.
type Result struct {
	Outcome Outcome

	// Stage is the last stage started.
	Stage       Stage
	Err         error
	RollbackErr error
	Duration    time.Duration

	Version string
	// Previous is the release that was active before the run.
	Previous string

	Checksum       string
	Size           int64
	Transfer       remote.TransferReport
	UploadAttempts int

	Restarted []string
	Started   []string
	// Stopped lists instances above a lowered replica count.
	Stopped []string
	Pruned  []string
}

// Pipeline runs one deploy of Plan to Host. A Pipeline is used once.
type Pipeline struct {
	Plan Plan
	Host host.Host

	// Connect opens the connection to Host. Nil dials an SSH session
	// with Dial.
	Connect func(ctx context.Context) (remote.Runner, error)
	Dial    remote.DialOptions

	// Local runs the build command. Nil means a remote.Local writing
	// to the process's stdout.
	Local remote.Runner

	// Secrets supplies values for $NAME markers in the env file.
	Secrets secrets.Source

	Clock    clock.Clock
	Logger   *slog.Logger
	Observer Observer

	mu    sync.Mutex
	state State

	plan             Plan
	layout           host.Layout
	runner           remote.Runner
	releases         *release.Manager
	env              *secret.Buffer
	bundle           *bundle.Bundle
	units            []unit.UnitFile
	previous         string
	previousManifest *bundle.Manifest
	// currentManifest describes the release active before this deploy;
	// restart planning compares against its unit digests.
	currentManifest *bundle.Manifest
	result          Result
}

// State returns the current pipeline state. It is safe to call while
// Run is in progress.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == "" {
		return StatePending
	}
	return p.state
}

func (p *Pipeline) setState(to State) {
	p.mu.Lock()
	from := p.state
	if from == "" {
		from = StatePending
	}
	p.state = to
	p.mu.Unlock()
	p.Observer.StateChanged(from, to)
}

func (p *Pipeline) init() {
	if p.Clock == nil {
		p.Clock = clock.Real()
	}
	if p.Logger == nil {
		p.Logger = slog.New(slog.DiscardHandler)
	}
	if p.Observer == nil {
		p.Observer = nopObserver{}
	}
	if p.Local == nil {
		p.Local = &remote.Local{Logger: p.Logger}
	}
	if p.Connect == nil {
		p.Connect = func(ctx context.Context) (remote.Runner, error) {
			options := p.Dial
			if options.Logger == nil {
				options.Logger = p.Logger
			}
			return remote.Dial(ctx, p.Host, options)
		}
	}
	p.plan = p.Plan.withDefaults()
	p.layout = p.Host.Layout(p.plan.App)
	p.result = Result{Version: p.plan.Version}
}

// Run executes the pipeline. The returned Result always has an
// Outcome; Err is nil only on success.
func (p *Pipeline) Run(ctx context.Context) Result {
	p.init()
	started := p.Clock.Now()
	p.run(ctx)
	p.cleanup()
	p.result.Duration = p.Clock.Now().Sub(started)
	p.Observer.Finished(p.result)
	return p.result
}

func (p *Pipeline) run(ctx context.Context) {
	if err := p.plan.Validate(); err != nil {
		p.failBeforeInstall(newStageError(StageConfig, p.Host.String(), err))
		return
	}

	p.setState(StateBuilding)
	if err := p.stage(ctx, StageBuild, p.build); err != nil {
		p.failBeforeInstall(err)
		return
	}
	if err := p.stage(ctx, StageSecrets, p.resolveSecrets); err != nil {
		p.failBeforeInstall(err)
		return
	}
	p.setState(StateSecretsResolved)
	if err := p.stage(ctx, StageBundle, p.buildBundle); err != nil {
		p.failBeforeInstall(err)
		return
	}
	p.setState(StateBundled)

	if err := p.stage(ctx, StageConnect, p.connect); err != nil {
		p.failBeforeInstall(err)
		return
	}
	if err := p.stage(ctx, StageUpload, p.upload); err != nil {
		p.failBeforeInstall(err)
		return
	}
	p.setState(StateUploaded)

	if err := p.stage(ctx, StageInstall, p.install); err != nil {
		p.failAfterInstall(ctx, err)
		return
	}
	p.setState(StateInstalled)
	if err := p.stage(ctx, StageServices, p.configureServices); err != nil {
		p.failAfterInstall(ctx, err)
		return
	}
	p.setState(StateServicesConfigured)
	if err := p.stage(ctx, StageVerify, p.verifyRelease); err != nil {
		p.failAfterInstall(ctx, err)
		return
	}
	p.setState(StateVerified)

	// The release is live; a prune failure is reported but does not
	// fail the deploy.
	if err := p.stage(ctx, StagePrune, p.prune); err != nil {
		p.Logger.Warn("pruning old releases failed", "error", err)
	}
	p.result.Outcome = OutcomeSuccess
	p.setState(StateDone)
}

// stage runs fn as stage, reporting it to the observer and converting
// its error to a *StageError.
func (p *Pipeline) stage(ctx context.Context, stage Stage, fn func(context.Context) error) *StageError {
	p.result.Stage = stage
	p.Observer.StageStarted(stage)
	started := p.Clock.Now()

	var stageErr *StageError
	err := ctx.Err()
	if err == nil {
		err = fn(ctx)
	}
	if err != nil {
		stageErr = newStageError(stage, p.Host.String(), err)
		p.Observer.StageFinished(stage, p.Clock.Now().Sub(started), stageErr)
		return stageErr
	}
	p.Observer.StageFinished(stage, p.Clock.Now().Sub(started), nil)
	return nil
}

func (p *Pipeline) failBeforeInstall(err *StageError) {
	p.result.Err = err
	p.result.Outcome = OutcomeFailedBeforeInstall
	p.setState(StateFailed)
}

// failAfterInstall handles a failure once the bundle is on the host.
// Rollback runs on a fresh context so that cancelling the deploy still
// leaves the host consistent.
func (p *Pipeline) failAfterInstall(ctx context.Context, err *StageError) {
	p.result.Err = err

	if err.Kind == KindConnection {
		p.result.Outcome = OutcomeRollbackFailed
		p.result.RollbackErr = &StageError{
			Stage: StageRollback,
			Kind:  KindRollback,
			Err:   &RollbackError{Version: p.previous, Skipped: true, Err: errConnectionLost},
			Hints: []string{"reconnect and run 'drydock rollback' to restore the previous release"},
		}
		p.setState(StateRollbackFailed)
		return
	}
	if p.plan.NoRollback {
		p.result.Outcome = OutcomeFailedNoRollback
		p.setState(StateFailed)
		return
	}

	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.plan.RollbackTimeout)
	defer cancel()
	p.setState(StateRollingBack)
	if rollbackErr := p.stage(rollbackCtx, StageRollback, p.rollback); rollbackErr != nil {
		p.result.RollbackErr = rollbackErr
		p.result.Outcome = OutcomeRollbackFailed
		p.setState(StateRollbackFailed)
		return
	}
	p.result.Outcome = OutcomeRolledBack
	p.setState(StateRolledBack)
}

func (p *Pipeline) cleanup() {
	if p.env != nil {
		p.env.Close()
		p.env = nil
	}
	if p.bundle != nil && p.plan.OutputDir == "" {
		os.RemoveAll(filepath.Dir(p.bundle.Path))
	}
	if closer, ok := p.runner.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			p.Logger.Warn("closing connection", "error", err)
		}
	}
}

func (p *Pipeline) build(ctx context.Context) error {
	if p.plan.BuildCommand == "" {
		p.Logger.Info("no build command configured; using existing distfile", "distfile", p.plan.DistFile)
		return nil
	}
	if p.plan.BuildDir != "" {
		defer p.Local.Cd(p.plan.BuildDir)()
	}
	if _, err := p.Local.Run(ctx, p.plan.BuildCommand, remote.RunOptions{Strict: true}); err != nil {
		return buildErrorFrom(p.plan.BuildCommand, err)
	}
	return nil
}

func (p *Pipeline) resolveSecrets(ctx context.Context) error {
	if p.plan.EnvFile == "" {
		return nil
	}
	content, err := os.ReadFile(p.plan.EnvFile)
	if err != nil {
		return &SecretResolutionError{Err: err}
	}
	resolved, err := secrets.Resolve(ctx, content, p.Secrets, p.plan.SecretsLimit)
	if err != nil {
		var resolveErr *secrets.ResolveError
		if errors.As(err, &resolveErr) {
			return &SecretResolutionError{Name: resolveErr.Name, Err: resolveErr.Err}
		}
		return &SecretResolutionError{Err: err}
	}
	p.env = resolved
	if names := secrets.References(content); len(names) > 0 {
		p.Logger.Info("resolved secrets", "count", len(names))
	}
	return nil
}

func (p *Pipeline) unitContext() unit.Context {
	return p.plan.UnitContext(p.layout)
}

func (p *Pipeline) buildBundle(ctx context.Context) error {
	unitContext := p.unitContext()
	units, err := unit.Compile(unitContext, p.plan.Processes)
	if err != nil {
		return &BundleError{Err: err}
	}
	p.units = units

	var caddyfile string
	if p.plan.Site != nil {
		caddyfile, err = webserver.Render(*p.plan.Site, unitContext, p.plan.Processes)
		if err != nil {
			return &BundleError{Err: err}
		}
	}

	var envContent []byte
	if p.env != nil {
		envContent = p.env.Bytes()
	}
	built, err := bundle.Build(bundle.Input{
		App:             p.plan.App,
		Version:         p.plan.Version,
		Mode:            p.plan.Mode,
		DistFile:        p.plan.DistFile,
		Requirements:    p.plan.Requirements,
		PythonVersion:   p.plan.PythonVersion,
		EnvContent:      envContent,
		Units:           units,
		ActiveCheck:     unit.ActiveUnits(units, p.plan.Processes),
		Restartable:     unit.PlanRestart(units, p.plan.Processes, nil, true).Restart,
		Caddyfile:       caddyfile,
		Webserver:       p.plan.Site != nil,
		CaddyConfigPath: p.plan.CaddyConfigPath,
		InstallDir:      p.layout.AppDir,
		User:            p.plan.ServiceUser(),
		OutputDir:       p.plan.OutputDir,
		BuiltAt:         p.Clock.Now(),
	})
	if err != nil {
		var bundleErr *bundle.Error
		if errors.As(err, &bundleErr) && bundleErr.Stage == bundle.StageBuild {
			return &BuildError{ExitCode: -1, Err: err}
		}
		return &BundleError{Err: err}
	}
	p.bundle = built
	p.result.Checksum = built.Checksum
	p.result.Size = built.Size
	p.Logger.Info("bundle built", "path", built.Path, "size", built.Size, "checksum", built.Checksum)
	return nil
}

// connect opens the connection and records the release a rollback
// would restore.
func (p *Pipeline) connect(ctx context.Context) error {
	runner, err := p.Connect(ctx)
	if err != nil {
		return err
	}
	p.runner = runner
	p.releases = release.NewManager(runner, p.layout, p.Logger)

	current, err := p.releases.Current(ctx)
	if err != nil {
		return err
	}
	p.result.Previous = current
	p.previous = current
	if current == p.plan.Version {
		// Redeploying the active version replaces it, so rollback
		// restores the release before it.
		p.previous, err = p.releases.Previous(ctx)
		if errors.Is(err, release.ErrNotFound) {
			p.previous, err = "", nil
		}
		if err != nil {
			return err
		}
	}
	if current == "" {
		return nil
	}

	p.currentManifest, err = p.readManifest(ctx, current)
	if err != nil || p.previous == "" {
		return err
	}
	if p.previous == current {
		p.previousManifest = p.currentManifest
		return nil
	}
	p.previousManifest, err = p.readManifest(ctx, p.previous)
	return err
}

// readManifest loads the manifest of an installed release. Only a lost
// connection is an error; an unreadable manifest is logged and nil.
func (p *Pipeline) readManifest(ctx context.Context, version string) (*bundle.Manifest, error) {
	manifest, err := p.releases.Manifest(ctx, version)
	if err != nil {
		var connection *remote.ConnectionError
		if errors.As(err, &connection) {
			return nil, err
		}
		p.Logger.Warn("release has no readable manifest; restarting every unit", "version", version, "error", err)
		return nil, nil
	}
	return manifest, nil
}

func (p *Pipeline) installOptions() release.InstallOptions {
	return release.InstallOptions{PTY: p.plan.PTY, Timeout: p.plan.InstallTimeout}
}

func (p *Pipeline) install(ctx context.Context) error {
	version := p.plan.Version
	if err := p.releases.Install(ctx, version, p.installOptions()); err != nil {
		return installErrorFrom(version, err)
	}
	if err := p.releases.Activate(ctx, version); err != nil {
		return &InstallError{Version: version, ExitCode: -1, Err: err}
	}
	return nil
}

func installErrorFrom(version string, err error) error {
	var connection *remote.ConnectionError
	if errors.As(err, &connection) {
		return err
	}
	exitCode := -1
	var scriptErr *release.ScriptError
	if errors.As(err, &scriptErr) {
		exitCode = scriptErr.ExitCode
	}
	return &InstallError{Version: version, ExitCode: exitCode, Err: err}
}

func (p *Pipeline) configureServices(ctx context.Context) error {
	var previous map[string]string
	if p.currentManifest != nil {
		previous = p.currentManifest.Units
	}
	plan := unit.PlanRestart(p.units, p.plan.Processes, previous, p.plan.FullRestart)
	p.result.Restarted, p.result.Started = plan.Restart, plan.Start

	stopped, err := p.stopSurplus(ctx)
	p.result.Stopped = stopped
	if err != nil {
		return err
	}
	return p.startUnits(ctx, unit.ActiveUnits(p.units, p.plan.Processes), plan.Restart, plan.Start)
}

func (p *Pipeline) verifyRelease(ctx context.Context) error {
	return p.verify(ctx, unit.ActiveUnits(p.units, p.plan.Processes))
}

func (p *Pipeline) prune(ctx context.Context) error {
	removed, err := p.releases.Prune(ctx, p.plan.Keep)
	p.result.Pruned = removed
	return err
}

// sleep waits d on the pipeline clock, returning early if ctx ends.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Clock.After(d):
		return nil
	}
}
