// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"io"
	"time"
)

// Runner is the command execution contract shared by [Session] and
// [Local].
type Runner interface {
	// Run executes command and blocks until it exits, ctx is done, or
	// opts.Timeout elapses.
	Run(ctx context.Context, command string, opts RunOptions) (Result, error)

	// Cd scopes subsequent Runs to dir until restore is called.
	Cd(dir string) (restore func())

	// Put copies a local file to remotePath.
	Put(ctx context.Context, localPath, remotePath string) (TransferReport, error)
}

// RunOptions controls one Run.
type RunOptions struct {
	// Hide suppresses local echo of the command's output. Output is
	// still captured in the Result.
	Hide bool

	// Strict turns a non-zero exit into a *CommandError. Without it,
	// a non-zero exit is only reported through Result.OK.
	Strict bool

	// PTY requests a pseudo-terminal. stderr is merged into stdout.
	PTY bool

	// Sudo runs the command with elevated privileges. If the runner
	// holds a password it is injected on the first prompt.
	Sudo bool

	// Env adds exported variables ahead of the command.
	Env map[string]string

	// Stdin, if set, is streamed to the command. It cannot be
	// combined with password-injected Sudo.
	Stdin io.Reader

	// Timeout bounds the command. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// Result is what a finished command produced.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	OK       bool
	Elapsed  time.Duration
}

// Output is stdout with surrounding whitespace trimmed, which is what
// most callers parsing a single value want.
func (r Result) Output() string {
	return trimOutput(r.Stdout)
}
