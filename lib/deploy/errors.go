// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/drydock-dev/drydock/lib/bundle"
	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/secrets"
)

// Kind classifies a StageError for exit codes and presentation.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindBuild         Kind = "build"
	KindSecrets       Kind = "secrets"
	KindBundle        Kind = "bundle"
	KindUpload        Kind = "upload"
	KindInstall       Kind = "install"
	KindService       Kind = "service"
	KindRollback      Kind = "rollback"
	KindConnection    Kind = "connection"
	KindCanceled      Kind = "canceled"
)

// StageError is the error every pipeline failure is reported as. Err
// is one of the taxonomy types below, possibly wrapping lower-level
// errors from the remote and bundle packages.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
	Hints []string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// BuildError reports a failed build command or unusable build output.
type BuildError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *BuildError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("build output: %v", e.Err)
	}
	return fmt.Sprintf("build command %q exited with status %d", e.Command, e.ExitCode)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SecretResolutionError reports a secret that could not be fetched.
type SecretResolutionError struct {
	Name string
	Err  error
}

func (e *SecretResolutionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("resolving secrets: %v", e.Err)
	}
	return fmt.Sprintf("resolving secret %q: %v", e.Name, e.Err)
}

func (e *SecretResolutionError) Unwrap() error { return e.Err }

// BundleError reports a failure to compile units or write the archive.
type BundleError struct {
	Err error
}

func (e *BundleError) Error() string { return fmt.Sprintf("bundling: %v", e.Err) }

func (e *BundleError) Unwrap() error { return e.Err }

// UploadReason says why an upload failed.
type UploadReason string

const (
	UploadMismatch  UploadReason = "mismatch"
	UploadTransport UploadReason = "transport"
)

// UploadError reports an upload that failed on every attempt.
type UploadError struct {
	Reason   UploadReason
	Attempts int

	// Expected and Actual are the local and last remote SHA-256 for
	// a mismatch.
	Expected string
	Actual   string

	Report remote.TransferReport
	Err    error
}

func (e *UploadError) Error() string {
	if e.Reason == UploadMismatch {
		return fmt.Sprintf("checksum mismatch after %d attempts: local %s, remote %s", e.Attempts, e.Expected, e.Actual)
	}
	return fmt.Sprintf("upload failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// InstallError reports a failure to install or activate the release.
// ExitCode is install.sh's status, or -1 when the script did not run.
type InstallError struct {
	Version  string
	ExitCode int
	Err      error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("installing %s: %v", e.Version, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// ServiceError reports a unit that systemd could not start or that did
// not become active.
type ServiceError struct {
	Unit  string
	State string

	// Journal holds the unit's last journal lines when they could be
	// read.
	Journal string
	Err     error
}

func (e *ServiceError) Error() string {
	message := fmt.Sprintf("unit %s is %s", e.Unit, e.State)
	if e.Err != nil {
		message = fmt.Sprintf("unit %s: %v", e.Unit, e.Err)
	}
	return message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// RollbackError reports a rollback that failed or could not be tried.
type RollbackError struct {
	// Version is the release the rollback tried to restore. Empty
	// when there was none and the failed release was uninstalled.
	Version string
	Skipped bool
	Err     error
}

func (e *RollbackError) Error() string {
	if e.Skipped {
		return fmt.Sprintf("rollback skipped: %v", e.Err)
	}
	if e.Version == "" {
		return fmt.Sprintf("uninstalling failed release: %v", e.Err)
	}
	return fmt.Sprintf("rolling back to %s: %v", e.Version, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// errConnectionLost is the cause recorded when rollback is skipped
// over a dead connection.
var errConnectionLost = errors.New("connection lost")

// ConnectionError reports a broken transport to the host.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid configuration or plan.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf("configuration: %v", e.Err) }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// hinter is implemented by lower-level errors that can suggest a fix,
// such as remote.TransferError and release.ScriptError.
type hinter interface {
	Hint() string
}

// newStageError classifies err and attaches hints. A connection error
// anywhere in the chain wins over the stage's own type, since it is
// never retried and decides whether rollback is possible.
func newStageError(stage Stage, host string, err error) *StageError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}

	var remoteConnection *remote.ConnectionError
	if errors.As(err, &remoteConnection) {
		if _, already := err.(*ConnectionError); !already {
			err = &ConnectionError{Host: host, Err: err}
		}
	}

	result := &StageError{Stage: stage, Kind: classify(err), Err: err}
	result.Hints = hints(result.Kind, err)
	return result
}

func classify(err error) Kind {
	var (
		configuration *ConfigurationError
		connection    *ConnectionError
		build         *BuildError
		secret        *SecretResolutionError
		bundleErr     *BundleError
		upload        *UploadError
		install       *InstallError
		service       *ServiceError
		rollback      *RollbackError
	)
	switch {
	case errors.As(err, &connection):
		return KindConnection
	case errors.As(err, &rollback):
		// Checked before the stage types, which a rollback error
		// usually wraps.
		return KindRollback
	case errors.As(err, &configuration):
		return KindConfiguration
	case errors.As(err, &build):
		return KindBuild
	case errors.As(err, &secret):
		return KindSecrets
	case errors.As(err, &bundleErr):
		return KindBundle
	case errors.As(err, &upload):
		return KindUpload
	case errors.As(err, &install):
		return KindInstall
	case errors.As(err, &service):
		return KindService
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindConfiguration
}

func hints(kind Kind, err error) []string {
	var collected []string
	add := func(hint string) {
		if hint != "" && !slices.Contains(collected, hint) {
			collected = append(collected, hint)
		}
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		if source, ok := current.(hinter); ok {
			add(source.Hint())
		}
	}

	switch kind {
	case KindConfiguration:
		add("check drydock.yaml; 'drydock units' renders the unit files without deploying")
	case KindBuild:
		var bundleErr *bundle.Error
		if errors.As(err, &bundleErr) && bundleErr.Stage == bundle.StageBuild {
			add("the build did not produce the configured distfile; check the distfile pattern")
		} else {
			add("run the build command locally to see its full output")
		}
	case KindSecrets:
		if errors.Is(err, secrets.ErrNotFound) {
			add("the secret does not exist in the configured source; check its name in the env file")
		} else {
			add("check that the secrets source is installed and logged in")
		}
	case KindBundle:
		add("check the requirements file and the drop-in directory")
	case KindUpload:
		var upload *UploadError
		if errors.As(err, &upload) && upload.Reason == UploadMismatch {
			add("the bundle was corrupted in transit; check the network path and free disk space on the host")
		}
	case KindService:
		var service *ServiceError
		if errors.As(err, &service) && service.Unit != "" {
			add("inspect the unit with 'journalctl -u " + service.Unit + "'")
		}
	case KindRollback:
		add("the host may be inconsistent; inspect it with 'drydock releases' and recover with 'drydock rollback'")
	case KindConnection:
		add("check that the host is reachable and that the configured credentials are accepted")
	case KindCanceled:
		add("the deploy was interrupted")
	}
	return collected
}

// buildErrorFrom lifts a remote.CommandError from the build command.
func buildErrorFrom(command string, err error) error {
	var commandErr *remote.CommandError
	if errors.As(err, &commandErr) {
		return &BuildError{
			Command:  command,
			ExitCode: commandErr.ExitCode,
			Output:   strings.TrimSpace(commandErr.Stderr),
			Err:      err,
		}
	}
	return &BuildError{Command: command, ExitCode: -1, Err: err}
}

// ExitCode maps a run's result to the process exit status.
//
//	0 success
//	1 configuration
//	2 build, secrets or bundle
//	3 upload
//	4 install
//	5 service failed to start or verify
//	6 rollback failed
//	7 connection
//	130 canceled before anything was installed
func ExitCode(result Result) int {
	if result.Err == nil {
		return 0
	}
	kind := KindConfiguration
	var stageErr *StageError
	if errors.As(result.Err, &stageErr) {
		kind = stageErr.Kind
	} else {
		kind = classify(result.Err)
	}

	if kind == KindConnection {
		return 7
	}
	if result.Outcome == OutcomeRollbackFailed {
		return 6
	}
	return KindExitCode(kind)
}

// KindExitCode is the exit status for an error of kind, outside a
// pipeline run.
func KindExitCode(kind Kind) int {
	switch kind {
	case KindBuild, KindSecrets, KindBundle:
		return 2
	case KindUpload:
		return 3
	case KindInstall:
		return 4
	case KindService:
		return 5
	case KindRollback:
		return 6
	case KindConnection:
		return 7
	case KindCanceled:
		return 130
	}
	return 1
}
