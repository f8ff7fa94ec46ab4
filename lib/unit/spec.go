// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"fmt"
	"regexp"
	"strings"
)

// processNamePattern is the character set allowed in process names.
// The name becomes part of a unit file name, so it must be safe for
// systemd and for unquoted use in shell commands.
var processNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// TimerSpec is the trigger configuration of a scheduled process. At
// least one of OnCalendar, OnBootSec and OnUnitActiveSec must be set.
type TimerSpec struct {
	OnCalendar         string
	OnBootSec          string
	OnUnitActiveSec    string
	Persistent         bool
	RandomizedDelaySec string
}

// ProcessSpec declares one process of the application.
type ProcessSpec struct {
	// Name is the process name, e.g. "web" or "worker".
	Name string

	// Command is the ExecStart command line. A relative executable
	// path (".venv/bin/gunicorn") is resolved against the current
	// release directory.
	Command string

	// Replicas is the number of instances. Values above one compile to
	// a template unit.
	Replicas int

	// Listen is the address the process binds itself. It is the
	// reverse proxy target for singleton processes and the
	// ListenStream of a singleton socket.
	Listen string

	// Socket enables systemd socket activation.
	Socket bool

	// Timer, when set, runs the process on a schedule as a oneshot.
	Timer *TimerSpec
}

// SpecError lists everything wrong with one ProcessSpec.
type SpecError struct {
	Process string
	Issues  []string
}

func (e *SpecError) Error() string {
	if e.Process == "" {
		return "invalid process: " + strings.Join(e.Issues, "; ")
	}
	return fmt.Sprintf("invalid process %q: %s", e.Process, strings.Join(e.Issues, "; "))
}

// NewProcessSpec validates spec and returns it with defaults applied.
// A zero Replicas becomes 1. Contradictory combinations are rejected
// here so that an invalid spec never reaches a deploy.
func NewProcessSpec(spec ProcessSpec) (ProcessSpec, error) {
	if spec.Replicas == 0 {
		spec.Replicas = 1
	}
	if err := spec.Validate(); err != nil {
		return ProcessSpec{}, err
	}
	return spec, nil
}

// Validate reports every structural problem with the spec.
func (p ProcessSpec) Validate() error {
	var issues []string

	if !processNamePattern.MatchString(p.Name) {
		issues = append(issues, "name must match [a-z0-9][a-z0-9_-]*")
	}
	if strings.TrimSpace(p.Command) == "" {
		issues = append(issues, "command is required")
	}
	if strings.ContainsAny(p.Command, "\r\n") {
		issues = append(issues, "command must be a single line")
	}
	if p.Replicas < 1 {
		issues = append(issues, fmt.Sprintf("replicas must be at least 1, got %d", p.Replicas))
	}
	if p.Replicas > 1 && p.Listen != "" {
		issues = append(issues, "a listen address cannot be shared by multiple replicas")
	}
	if strings.ContainsAny(p.Listen, " \t\r\n") {
		issues = append(issues, "listen address must not contain whitespace")
	}
	if p.Timer != nil {
		if p.Socket {
			issues = append(issues, "a timer cannot be combined with socket activation")
		}
		if p.Replicas > 1 {
			issues = append(issues, "a timer cannot be combined with replicas")
		}
		issues = append(issues, p.Timer.issues()...)
	}

	if len(issues) > 0 {
		return &SpecError{Process: p.Name, Issues: issues}
	}
	return nil
}

// Template reports whether the process compiles to a template unit.
func (p ProcessSpec) Template() bool { return p.Replicas > 1 }

func (t TimerSpec) issues() []string {
	var issues []string
	if t.OnCalendar == "" && t.OnBootSec == "" && t.OnUnitActiveSec == "" {
		issues = append(issues, "timer needs one of on_calendar, on_boot_sec or on_unit_active_sec")
	}
	fields := []struct{ name, value string }{
		{"on_calendar", t.OnCalendar},
		{"on_boot_sec", t.OnBootSec},
		{"on_unit_active_sec", t.OnUnitActiveSec},
		{"randomized_delay_sec", t.RandomizedDelaySec},
	}
	for _, field := range fields {
		if strings.ContainsAny(field.value, "\r\n") {
			issues = append(issues, field.name+" must be a single line")
		}
	}
	return issues
}
