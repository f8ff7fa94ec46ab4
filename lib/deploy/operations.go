// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/drydock-dev/drydock/lib/clock"
	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/release"
	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/unit"
)

// Stages reported by Operations errors.
const (
	StageDown    Stage = "down"
	StageScale   Stage = "scale"
	StageControl Stage = "control"
)

// ErrNoRollbackTarget is returned by Operations.Rollback when no
// release older than the active one exists.
var ErrNoRollbackTarget = errors.New("no release to roll back to")

// Operations acts on an application that is already on the host,
// outside a deploy. Runner must be connected to Host.
type Operations struct {
	Plan   Plan
	Host   host.Host
	Runner remote.Runner
	Clock  clock.Clock
	Logger *slog.Logger
}

// RollbackReport describes a manual rollback.
type RollbackReport struct {
	From string
	To   string
	// Unchanged is set when To was already active and nothing ran.
	Unchanged bool
	Removed   []string
}

// DownReport describes a teardown.
type DownReport struct {
	// Uninstalled is the release whose uninstall.sh ran, or "".
	Uninstalled string
	Purged      bool
}

// pipeline returns a Pipeline bound to Runner, so the operations share
// the deploy's unit handling and verification.
func (o *Operations) pipeline() *Pipeline {
	p := &Pipeline{Plan: o.Plan, Host: o.Host, Clock: o.Clock, Logger: o.Logger}
	p.init()
	p.runner = o.Runner
	p.releases = release.NewManager(o.Runner, p.layout, p.Logger)
	return p
}

// Releases returns the release manager for the application.
func (o *Operations) Releases() *release.Manager {
	return o.pipeline().releases
}

// Rollback makes version the active release. An empty version means
// the newest release older than the active one. The active release is
// uninstalled first so units it alone defined do not linger. With
// clean, releases newer than version are deleted.
func (o *Operations) Rollback(ctx context.Context, version string, clean bool) (RollbackReport, error) {
	p := o.pipeline()
	report, err := p.manualRollback(ctx, version, clean)
	if err != nil {
		return report, newStageError(StageRollback, p.Host.String(), err)
	}
	return report, nil
}

func (p *Pipeline) manualRollback(ctx context.Context, version string, clean bool) (RollbackReport, error) {
	current, err := p.releases.Current(ctx)
	if err != nil {
		return RollbackReport{}, err
	}
	if version == "" {
		version, err = p.releases.Previous(ctx)
		if errors.Is(err, release.ErrNotFound) {
			return RollbackReport{From: current}, &ConfigurationError{Err: ErrNoRollbackTarget}
		}
		if err != nil {
			return RollbackReport{}, err
		}
	}
	report := RollbackReport{From: current, To: version}

	exists, err := p.releases.Exists(ctx, version)
	if err != nil {
		return report, err
	}
	if !exists {
		return report, &ConfigurationError{Err: fmt.Errorf("release %s: %w", version, release.ErrNotFound)}
	}
	if version == current && !clean {
		report.Unchanged = true
		return report, nil
	}

	if current != "" && current != version {
		if err := p.releases.Uninstall(ctx, current, p.installOptions()); err != nil {
			p.Logger.Warn("uninstalling active release", "version", current, "error", err)
		}
	}
	manifest, err := p.readManifest(ctx, version)
	if err != nil {
		return report, err
	}

	report.Removed, err = p.releases.Rollback(ctx, version, clean, p.installOptions())
	if err != nil {
		return report, &RollbackError{Version: version, Err: err}
	}
	if version == current {
		return report, nil
	}

	p.previous = version
	p.previousManifest = manifest
	if err := p.restartRestored(ctx); err != nil {
		return report, &RollbackError{Version: version, Err: err}
	}
	p.Logger.Info("rolled back", "from", current, "to", version, "removed", report.Removed)
	return report, nil
}

// Down uninstalls the active release and deactivates it. With full the
// application directory, every release included, is deleted too.
func (o *Operations) Down(ctx context.Context, full bool) (DownReport, error) {
	p := o.pipeline()
	var report DownReport
	current, err := p.releases.Current(ctx)
	if err != nil {
		return report, newStageError(StageDown, p.Host.String(), err)
	}
	if current != "" {
		if err := p.releases.Uninstall(ctx, current, p.installOptions()); err != nil {
			return report, newStageError(StageDown, p.Host.String(), err)
		}
		if err := p.releases.Deactivate(ctx); err != nil {
			return report, newStageError(StageDown, p.Host.String(), err)
		}
		report.Uninstalled = current
	} else {
		p.Logger.Info("no active release", "app", p.plan.App)
	}
	if full {
		if err := p.releases.Purge(ctx); err != nil {
			return report, newStageError(StageDown, p.Host.String(), err)
		}
		report.Purged = true
	}
	return report, nil
}

// PlanScale computes the change of process to replicas. With a Runner
// the starting point is the instances systemd has loaded, so earlier
// scale operations are accounted for; without one, or before the first
// deploy, it is the configured replica count.
func (o *Operations) PlanScale(ctx context.Context, process string, replicas int) (unit.ScalePlan, unit.ProcessSpec, error) {
	index := slices.IndexFunc(o.Plan.Processes, func(spec unit.ProcessSpec) bool { return spec.Name == process })
	if index < 0 {
		return unit.ScalePlan{}, unit.ProcessSpec{}, &ConfigurationError{Err: fmt.Errorf("no process named %q", process)}
	}
	spec := o.Plan.Processes[index]
	if spec.Timer != nil {
		return unit.ScalePlan{}, spec, &ConfigurationError{Err: fmt.Errorf("process %s runs on a timer and cannot be scaled", process)}
	}
	plan, err := unit.PlanScale(o.Plan.App, process, spec.Replicas, replicas)
	if err != nil {
		return plan, spec, &ConfigurationError{Err: err}
	}
	if o.Runner == nil || plan.Reshape || !spec.Template() {
		return plan, spec, nil
	}

	live, err := LiveInstances(ctx, o.Runner, plan.Template)
	if err != nil {
		var commandErr *remote.CommandError
		if !errors.As(err, &commandErr) {
			return plan, spec, newStageError(StageScale, o.Host.String(), err)
		}
		o.pipeline().Logger.Warn("cannot list running instances; using the configured count", "process", process, "error", err)
		return plan, spec, nil
	}
	if len(live[plan.Template]) == 0 {
		return plan, spec, nil
	}
	plan, err = unit.Reconcile(o.Plan.App, process, live[plan.Template], replicas)
	if err != nil {
		return plan, spec, &ConfigurationError{Err: err}
	}
	return plan, spec, nil
}

// Scale applies plan to the running instances and waits for the
// started ones to become active.
func (o *Operations) Scale(ctx context.Context, plan unit.ScalePlan) error {
	p := o.pipeline()
	if err := ApplyScale(ctx, p.runner, plan); err != nil {
		return newStageError(StageScale, p.Host.String(), err)
	}
	if err := p.verify(ctx, plan.Start); err != nil {
		return newStageError(StageScale, p.Host.String(), err)
	}
	return nil
}
