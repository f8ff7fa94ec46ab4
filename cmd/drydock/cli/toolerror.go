// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"strings"
)

// ErrorCategory classifies a command failure.
type ErrorCategory string

const (
	// CategoryValidation: bad arguments or flags. Fix the input.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: a named release, process or file does not
	// exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryConflict: the host is not in a state that allows the
	// operation, such as another deploy holding the lock.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient: the network or the host failed and a retry
	// may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: anything else.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command error. Hints are printed under
// the message, one per line.
type ToolError struct {
	Category ErrorCategory
	Err      error
	Hints    []string

	// Code is the exit status. Zero means 1.
	Code int
}

func (e *ToolError) Error() string {
	if len(e.Hints) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + strings.Join(e.Hints, "\n")
}

func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode returns Code, or 1.
func (e *ToolError) ExitCode() int {
	if e.Code == 0 {
		return 1
	}
	return e.Code
}

// WithHint appends a hint and returns e.
func (e *ToolError) WithHint(hint string) *ToolError {
	if hint != "" {
		e.Hints = append(e.Hints, hint)
	}
	return e
}

// WithExitCode sets the exit status and returns e.
func (e *ToolError) WithExitCode(code int) *ToolError {
	e.Code = code
	return e
}

// Validation reports bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound reports a missing release, process or file.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Conflict reports that current state forbids the operation.
func Conflict(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryConflict, Err: fmt.Errorf(format, args...)}
}

// Transient reports a failure a retry may fix.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal reports an unexpected failure.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
