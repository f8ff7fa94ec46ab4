// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"errors"
	"fmt"

	"github.com/drydock-dev/drydock/lib/bundle"
)

// ErrNotFound is returned when a release has neither an archive nor an
// extracted directory on the host.
var ErrNotFound = errors.New("release not found")

// ErrActive is returned when an operation would remove the release
// that current points at.
var ErrActive = errors.New("release is active")

// ScriptError reports a failed install.sh or uninstall.sh run.
type ScriptError struct {
	Script   string
	Version  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s for release %s exited with status %d", e.Script, e.Version, e.ExitCode)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Hint suggests a next step based on the script's exit code.
func (e *ScriptError) Hint() string {
	switch e.ExitCode {
	case bundle.InstallInvalidBundle:
		return "the bundle is incomplete or corrupted; rebuild and redeploy"
	case bundle.InstallServiceFailed:
		return "systemd rejected the unit files; inspect them with 'drydock units'"
	}
	return "rerun with --verbose to see the script output"
}
