// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/drydock-dev/drydock/lib/digest"
	"github.com/drydock-dev/drydock/lib/remote"
)

// cleanupTimeout bounds removal of a partial upload after the deploy
// context is gone.
const cleanupTimeout = 30 * time.Second

// partialSuffix marks a bundle that has not passed checksum
// verification yet. Only verified files are moved to the bundle path,
// so a failed upload never touches an existing archive of the same
// version.
const partialSuffix = ".partial"

// upload sends the bundle and compares its remote SHA-256 with the
// local one. Mismatches and transfer failures are retried with linear
// backoff; connection loss is not. On final failure or cancellation
// the partial file is removed.
func (p *Pipeline) upload(ctx context.Context) error {
	remotePath := p.layout.BundlePath(p.plan.Version) + partialSuffix

	var last *UploadError
	for attempt := 1; attempt <= p.plan.UploadAttempts; attempt++ {
		p.result.UploadAttempts = attempt
		if attempt > 1 {
			if err := p.sleep(ctx, time.Duration(attempt-1)*p.plan.UploadBackoff); err != nil {
				p.removePartial(ctx, remotePath)
				return err
			}
		}

		err := p.uploadOnce(ctx, remotePath)
		if err == nil {
			if attempt > 1 {
				p.Logger.Info("upload succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var connection *remote.ConnectionError
		if errors.As(err, &connection) {
			return err
		}
		if ctx.Err() != nil {
			p.removePartial(ctx, remotePath)
			return ctx.Err()
		}
		if !errors.As(err, &last) {
			p.removePartial(ctx, remotePath)
			return err
		}
		p.Logger.Warn("upload attempt failed",
			"attempt", attempt,
			"attempts", p.plan.UploadAttempts,
			"reason", string(last.Reason),
			"error", err,
		)
	}

	p.removePartial(ctx, remotePath)
	last.Attempts = p.plan.UploadAttempts
	return last
}

// uploadOnce sends one copy to remotePath, verifies it and renames it
// onto the bundle path.
func (p *Pipeline) uploadOnce(ctx context.Context, remotePath string) error {
	transportFailure := func(err error) error {
		var connection *remote.ConnectionError
		if errors.As(err, &connection) || ctx.Err() != nil {
			return err
		}
		return &UploadError{Reason: UploadTransport, Report: p.result.Transfer, Err: err}
	}

	mkdir := "mkdir -p " + remote.Quote(p.layout.VersionsDir())
	if _, err := p.runner.Run(ctx, mkdir, remote.RunOptions{Hide: true, Strict: true}); err != nil {
		return transportFailure(err)
	}

	report, err := p.runner.Put(ctx, p.bundle.Path, remotePath)
	p.result.Transfer = report
	if err != nil {
		return transportFailure(err)
	}
	if report.FellBack() {
		p.Logger.Info("upload used a fallback transfer", "transfers", report.Summary())
	}

	result, err := p.runner.Run(ctx, "sha256sum "+remote.Quote(remotePath), remote.RunOptions{Hide: true, Strict: true})
	if err != nil {
		return transportFailure(err)
	}
	sum, err := digest.ParseSumOutput(result.Stdout)
	if err != nil {
		return transportFailure(err)
	}
	if actual := digest.FormatSHA256(sum); actual != p.bundle.Checksum {
		return &UploadError{
			Reason:   UploadMismatch,
			Expected: p.bundle.Checksum,
			Actual:   actual,
			Report:   report,
		}
	}

	finalPath := strings.TrimSuffix(remotePath, partialSuffix)
	move := "mv -f " + remote.Quote(remotePath) + " " + remote.Quote(finalPath)
	if _, err := p.runner.Run(ctx, move, remote.RunOptions{Hide: true, Strict: true}); err != nil {
		return transportFailure(err)
	}
	return nil
}

// removePartial deletes the unverified upload on a fresh context, since
// ctx may already be cancelled. The bundle path itself is never
// removed here.
func (p *Pipeline) removePartial(ctx context.Context, remotePath string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if _, err := p.runner.Run(cleanupCtx, "rm -f "+remote.Quote(remotePath), remote.RunOptions{Hide: true, Strict: true}); err != nil {
		p.Logger.Warn("removing partial upload", "path", remotePath, "error", err)
	}
}
