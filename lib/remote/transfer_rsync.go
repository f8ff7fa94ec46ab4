// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/drydock-dev/drydock/lib/host"
)

// RsyncTransfer shells out to the local rsync binary. It only applies
// to files at or above Threshold, to key authentication (rsync's ssh
// cannot be fed a password), and when rsync exists on both ends. The
// file lands in <remote>.staging first so a partial transfer never
// replaces the destination.
type RsyncTransfer struct {
	Session   *Session
	Threshold int64

	// LookPath finds the local binary. Nil means exec.LookPath.
	LookPath func(string) (string, error)
}

func (t *RsyncTransfer) Name() string { return "rsync" }

func (t *RsyncTransfer) Send(ctx context.Context, source LocalFile, remotePath string) TransferAttempt {
	if source.Size < t.Threshold {
		return skipped("below threshold")
	}
	target := t.Session.Host()
	if target.Auth() != host.AuthKey {
		return skipped("requires key authentication")
	}

	lookPath := t.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	binary, err := lookPath("rsync")
	if err != nil {
		return skipped("rsync not installed locally")
	}
	found, err := t.Session.Run(ctx, "command -v rsync", RunOptions{Hide: true})
	if err != nil {
		return failed(err)
	}
	if !found.OK {
		return skipped("rsync not installed on host")
	}

	staging := remotePath + ".staging"
	shell := strings.Join([]string{
		"ssh",
		"-p", strconv.Itoa(portOrDefault(target.Port)),
		"-i", Quote(host.ExpandHome(target.KeyFile)),
		"-o", "BatchMode=yes",
		"-o", hostKeyOption(target),
	}, " ")

	command := exec.CommandContext(ctx, binary,
		"-az", "--partial",
		"-e", shell,
		source.Path,
		fmt.Sprintf("%s@%s:%s", target.User, target.Address, staging),
	)
	var output bytes.Buffer
	command.Stdout = &output
	command.Stderr = &output
	if err := command.Run(); err != nil {
		t.Session.Run(ctx, "rm -f "+Quote(staging), RunOptions{Hide: true})
		return failed(fmt.Errorf("rsync: %w: %s", err, lastLines(output.String(), 3)))
	}

	_, err = t.Session.Run(ctx,
		"cp -f "+Quote(staging)+" "+Quote(remotePath)+" && rm -f "+Quote(staging),
		RunOptions{Hide: true, Strict: true})
	if err != nil {
		return failed(err)
	}
	return TransferAttempt{Status: TransferDone, Bytes: source.Size}
}

func portOrDefault(port int) int {
	if port == 0 {
		return 22
	}
	return port
}

func hostKeyOption(target host.Host) string {
	if target.InsecureIgnoreHostKey {
		return "StrictHostKeyChecking=no"
	}
	return "UserKnownHostsFile=" + Quote(target.KnownHostsPath())
}
