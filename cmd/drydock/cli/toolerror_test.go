// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestToolErrorHints(t *testing.T) {
	err := Conflict("deploy lock held by alice").
		WithHint("wait for the other deploy to finish").
		WithHint("")
	want := "deploy lock held by alice\n\nwait for the other deploy to finish"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if plain := Internal("boom"); plain.Error() != "boom" {
		t.Errorf("Error() = %q, want boom", plain.Error())
	}
}

func TestToolErrorExitCode(t *testing.T) {
	if code := Validation("bad").ExitCode(); code != 1 {
		t.Errorf("default ExitCode = %d, want 1", code)
	}
	if code := Transient("lost").WithExitCode(7).ExitCode(); code != 7 {
		t.Errorf("ExitCode = %d, want 7", code)
	}
}

func TestToolErrorUnwraps(t *testing.T) {
	sentinel := errors.New("release not found")
	err := fmt.Errorf("rollback: %w", NotFound("version 9.9.9: %w", sentinel))

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatal("errors.As did not find the ToolError")
	}
	if toolErr.Category != CategoryNotFound {
		t.Errorf("Category = %q", toolErr.Category)
	}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is lost the wrapped sentinel")
	}
}

func TestExitError(t *testing.T) {
	var coder interface{ ExitCode() int } = &ExitError{Code: 6}
	if coder.ExitCode() != 6 {
		t.Errorf("ExitCode = %d", coder.ExitCode())
	}
}
