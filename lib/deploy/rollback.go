// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"

	"github.com/drydock-dev/drydock/lib/release"
)

// rollback restores the release that was active before the run, or
// uninstalls the failed release when there was none. The failed
// release is removed either way.
func (p *Pipeline) rollback(ctx context.Context) error {
	var err error
	if p.previous != "" {
		p.Logger.Info("rolling back", "from", p.plan.Version, "to", p.previous)
		err = p.restorePrevious(ctx)
	} else {
		p.Logger.Info("no previous release; uninstalling", "version", p.plan.Version)
		err = p.uninstallFailed(ctx)
	}
	p.discardFailed(ctx)
	if err != nil {
		return &RollbackError{Version: p.previous, Err: err}
	}
	return nil
}

func (p *Pipeline) restorePrevious(ctx context.Context) error {
	if err := p.releases.Install(ctx, p.previous, p.installOptions()); err != nil {
		return err
	}
	if err := p.releases.Activate(ctx, p.previous); err != nil {
		return err
	}
	return p.restartRestored(ctx)
}

// restartRestored brings up the units of p.previous, which is already
// installed and active, and waits for them.
func (p *Pipeline) restartRestored(ctx context.Context) error {
	if p.previousManifest == nil {
		return systemctl(ctx, p.runner, []string{"daemon-reload"})
	}

	active := p.previousManifest.ActiveCheck
	restart := p.previousManifest.Restartable
	if len(restart) == 0 {
		restart = active
	}
	if err := p.startUnits(ctx, active, restart, nil); err != nil {
		return err
	}
	return p.verify(ctx, active)
}

func (p *Pipeline) uninstallFailed(ctx context.Context) error {
	if err := p.releases.Uninstall(ctx, p.plan.Version, p.installOptions()); err != nil {
		return err
	}
	return p.releases.Deactivate(ctx)
}

// discardFailed removes the failed release so it is never offered as
// a rollback target. When it is still active only the archive goes.
func (p *Pipeline) discardFailed(ctx context.Context) {
	version := p.plan.Version
	err := p.releases.Remove(ctx, version)
	if errors.Is(err, release.ErrActive) {
		err = p.releases.RemoveArchive(ctx, version)
	}
	if err != nil {
		p.Logger.Warn("removing failed release", "version", version, "error", err)
		return
	}
	p.Logger.Info("removed failed release", "version", version)
}
