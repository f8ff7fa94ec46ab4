// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import "fmt"

// Stage names used in Error.
const (
	StageBuild  = "build"
	StageBundle = "bundle"
)

// Error is returned by Build. Stage is StageBuild when the build output
// itself is missing or unusable, and StageBundle for problems with the
// other inputs or with writing the archive.
type Error struct {
	Stage string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func buildError(op string, err error) *Error {
	return &Error{Stage: StageBuild, Op: op, Err: err}
}

func bundleError(op string, err error) *Error {
	return &Error{Stage: StageBundle, Op: op, Err: err}
}
