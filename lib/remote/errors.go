// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSudoAuthFailed is returned when a privilege-escalation prompt
// appears again after the stored credential was injected. The
// credential is never sent twice.
var ErrSudoAuthFailed = errors.New("sudo authentication failed: password prompt repeated after the stored credential was sent")

// ErrNoSudoPassword is returned when a command needs a sudo password
// but the session holds none.
var ErrNoSudoPassword = errors.New("sudo requires a password and none is configured")

// ConnectionError reports that the transport to the host failed:
// dialing, authentication, or a connection lost mid-command. These
// are never retried by drydock.
type ConnectionError struct {
	Host string
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %s: %v", e.Host, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError is returned in strict mode when a command exits
// non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	message := fmt.Sprintf("command exited with status %d: %s", e.ExitCode, e.Command)
	if tail := lastLines(e.Stderr, 5); tail != "" {
		message += "\n" + tail
	}
	return message
}

// TimeoutError is returned when RunOptions.Timeout elapses before the
// command exits. The remote process is signalled.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s: %s", e.Timeout, e.Command)
}

func lastLines(text string, count int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > count {
		lines = lines[len(lines)-count:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func trimOutput(text string) string {
	return strings.TrimSpace(text)
}
