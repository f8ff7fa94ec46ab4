// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remotetest

import (
	"context"
	"io"
	"sync"

	"github.com/drydock-dev/drydock/lib/remote"
)

// Reply is a canned answer to an intercepted command.
type Reply struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Err, when set, is returned instead of a result, as a transport
	// failure would be.
	Err error
}

// Runner is a [remote.Runner] over the local shell for tests of code
// that drives a host. It records every command, drops Sudo so scripts
// run as the test user, and lets Intercept answer commands such as
// systemctl that cannot run in a test environment.
type Runner struct {
	Local *remote.Local

	// Intercept, if set, sees every command first. Returning false
	// passes the command to the local shell.
	Intercept func(command string) (Reply, bool)

	// PutFunc, if set, replaces Local.Put.
	PutFunc func(ctx context.Context, localPath, remotePath string) (remote.TransferReport, error)

	mu       sync.Mutex
	commands []string
}

// NewRunner returns a Runner whose local shell discards output.
func NewRunner() *Runner {
	return &Runner{Local: &remote.Local{Stdout: io.Discard, Stderr: io.Discard}}
}

func (r *Runner) Run(ctx context.Context, command string, opts remote.RunOptions) (remote.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	intercept := r.Intercept
	r.mu.Unlock()

	if intercept != nil {
		if reply, handled := intercept(command); handled {
			if reply.Err != nil {
				return remote.Result{Command: command}, reply.Err
			}
			result := remote.Result{
				Command:  command,
				Stdout:   reply.Stdout,
				Stderr:   reply.Stderr,
				ExitCode: reply.ExitCode,
				OK:       reply.ExitCode == 0,
			}
			if opts.Strict && !result.OK {
				return result, &remote.CommandError{Command: command, ExitCode: reply.ExitCode, Stderr: reply.Stderr}
			}
			return result, nil
		}
	}

	opts.Sudo = false
	return r.Local.Run(ctx, command, opts)
}

func (r *Runner) Cd(dir string) (restore func()) { return r.Local.Cd(dir) }

func (r *Runner) Put(ctx context.Context, localPath, remotePath string) (remote.TransferReport, error) {
	r.mu.Lock()
	put := r.PutFunc
	r.mu.Unlock()
	if put != nil {
		return put(ctx, localPath, remotePath)
	}
	return r.Local.Put(ctx, localPath, remotePath)
}

// SetIntercept replaces Intercept while commands may be running.
func (r *Runner) SetIntercept(intercept func(command string) (Reply, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Intercept = intercept
}

// Commands returns every command run so far, in order.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}
