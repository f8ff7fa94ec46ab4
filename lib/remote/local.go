// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long a cancelled local command gets
// between SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Local runs commands on the deploying machine through bash. It
// satisfies Runner so build steps and tests share the remote code
// path.
type Local struct {
	Logger      *slog.Logger
	Stdout      io.Writer
	Stderr      io.Writer
	GracePeriod time.Duration

	dirs dirStack
}

// Cd scopes subsequent Runs to dir.
func (l *Local) Cd(dir string) (restore func()) { return l.dirs.push(dir) }

// Run executes command with bash -c in its own process group.
// Cancellation sends SIGTERM to the group, then SIGKILL after the
// grace period. Sudo uses sudo -n: a local build never prompts.
func (l *Local) Run(ctx context.Context, command string, opts RunOptions) (Result, error) {
	mode := sudoNone
	if opts.Sudo {
		mode = sudoNonInteractive
	}
	line := compose(l.dirs.top(), command, opts.Env, mode)

	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		return Result{Command: command}, err
	}
	defer stdoutReader.Close()
	stderrReader, stderrWriter, err := os.Pipe()
	if err != nil {
		stdoutWriter.Close()
		return Result{Command: command}, err
	}
	defer stderrReader.Close()

	process := exec.Command("bash", "-c", line)
	process.Stdout = stdoutWriter
	process.Stderr = stderrWriter
	process.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdin, err := process.StdinPipe()
	if err != nil {
		stdoutWriter.Close()
		stderrWriter.Close()
		return Result{Command: command}, err
	}

	startErr := process.Start()
	// The child holds its own copies; closing ours lets the readers
	// see EOF when it exits.
	stdoutWriter.Close()
	stderrWriter.Close()
	if startErr != nil {
		return Result{Command: command}, fmt.Errorf("starting %q: %w", command, startErr)
	}

	grace := l.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	abort := func() {
		syscall.Kill(-process.Process.Pid, syscall.SIGTERM)
		go func() {
			time.Sleep(grace)
			syscall.Kill(-process.Process.Pid, syscall.SIGKILL)
		}()
	}

	stdout, stderr := l.Stdout, l.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("running local command", "command", command, "dir", l.dirs.top())

	return consume(ctx, &execution{
		command:    command,
		opts:       opts,
		stdout:     stdoutReader,
		stderr:     stderrReader,
		stdin:      stdin,
		wait:       process.Wait,
		abort:      abort,
		exitCode:   localExitCode,
		echoStdout: stdout,
		echoStderr: stderr,
	})
}

func localExitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Put copies a file locally, creating the destination directory.
func (l *Local) Put(ctx context.Context, localPath, remotePath string) (TransferReport, error) {
	started := time.Now()
	attempt := TransferAttempt{Strategy: "copy"}

	err := func() error {
		source, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer source.Close()
		if err := os.MkdirAll(filepath.Dir(remotePath), 0755); err != nil {
			return err
		}
		destination, err := os.Create(remotePath)
		if err != nil {
			return err
		}
		written, err := io.Copy(destination, readerWithContext{ctx: ctx, reader: source})
		attempt.Bytes = written
		if closeErr := destination.Close(); err == nil {
			err = closeErr
		}
		return err
	}()

	attempt.Elapsed = time.Since(started)
	report := TransferReport{}
	if err != nil {
		attempt.Status, attempt.Err = TransferFailed, err
		report.Attempts = append(report.Attempts, attempt)
		return report, &TransferError{Report: report}
	}
	attempt.Status = TransferDone
	report.Attempts = append(report.Attempts, attempt)
	report.Used = attempt.Strategy
	return report, nil
}

type readerWithContext struct {
	ctx    context.Context
	reader io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.reader.Read(p)
}
