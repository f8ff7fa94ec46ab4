// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError ends the process with Code without printing anything more.
// Commands return it after writing their own report, as deploy does
// with its summary.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode implements the interface main checks for.
func (e *ExitError) ExitCode() int {
	return e.Code
}
