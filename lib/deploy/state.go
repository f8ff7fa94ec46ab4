// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

// State is a pipeline state.
type State string

const (
	StatePending            State = "pending"
	StateBuilding           State = "building"
	StateSecretsResolved    State = "secrets_resolved"
	StateBundled            State = "bundled"
	StateUploaded           State = "uploaded"
	StateInstalled          State = "installed"
	StateServicesConfigured State = "services_configured"
	StateVerified           State = "verified"
	StateDone               State = "done"

	// StateFailed is terminal for failures that need no rollback.
	StateFailed State = "failed"

	StateRollingBack    State = "rolling_back"
	StateRolledBack     State = "rolled_back"
	StateRollbackFailed State = "rollback_failed"
)

// Terminal reports whether the pipeline can leave s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateRolledBack, StateRollbackFailed:
		return true
	}
	return false
}

// Stage names a unit of pipeline work. Stages are reported to
// observers and carried by errors.
type Stage string

const (
	StageConfig   Stage = "config"
	StageBuild    Stage = "build"
	StageSecrets  Stage = "secrets"
	StageBundle   Stage = "bundle"
	StageConnect  Stage = "connect"
	StageUpload   Stage = "upload"
	StageInstall  Stage = "install"
	StageServices Stage = "services"
	StageVerify   Stage = "verify"
	StagePrune    Stage = "prune"
	StageRollback Stage = "rollback"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"

	// OutcomeFailedBeforeInstall means the host was left as it was,
	// apart from removing a partial upload.
	OutcomeFailedBeforeInstall Outcome = "failed-before-install"

	// OutcomeRolledBack means the release failed after installation
	// and the previous state was restored.
	OutcomeRolledBack Outcome = "failed-after-install-rolled-back"

	// OutcomeRollbackFailed means the release failed after
	// installation and restoring the previous state failed too, or was
	// impossible.
	OutcomeRollbackFailed Outcome = "failed-rollback-failed"

	// OutcomeFailedNoRollback means the release failed after
	// installation and rollback was disabled. The failed release stays
	// active.
	OutcomeFailedNoRollback Outcome = "failed-after-install"
)
