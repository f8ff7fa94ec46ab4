// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/unit"
)

// UnitState is the active state of one concrete unit. Checked units
// must be active for their process to be up; the others, such as the
// service behind a timer, come and go.
type UnitState struct {
	Name    string
	State   string
	Checked bool
}

// ProcessStatus is the state of one process's units. Running counts
// the units that must be active for the process to be up, out of Total.
type ProcessStatus struct {
	Process string
	Units   []UnitState
	Running int
	Total   int
}

// Up reports whether every checked unit is active.
func (s ProcessStatus) Up() bool { return s.Total > 0 && s.Running == s.Total }

// StatusReport is the state of the application on the host.
type StatusReport struct {
	// Current is the active release, or "" when nothing is deployed.
	Current   string
	Processes []ProcessStatus
}

// Verbs accepted by Control.
const (
	VerbStart   = "start"
	VerbStop    = "stop"
	VerbRestart = "restart"
)

// Log priorities journalctl accepts for LogOptions.Level.
var logLevels = []string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

// LogOptions selects journal lines for Logs.
type LogOptions struct {
	// Process is a reference as accepted by unit.Resolve; "" is every
	// process.
	Process string
	// Lines is the number of trailing lines shown without Follow.
	Lines  int
	Follow bool
	Level  string
	Since  string
	// Grep filters messages by pattern, case-insensitively.
	Grep string
}

// DefaultLogLines is used when LogOptions.Lines is zero.
const DefaultLogLines = 50

func (o *Operations) compile() ([]unit.UnitFile, error) {
	units, err := unit.Compile(o.Plan.UnitContext(o.Host.Layout(o.Plan.App)), o.Plan.Processes)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return units, nil
}

// Status reports the active release and the state of every process.
// Instances of a template that run beyond the configured count, left
// by scale, are included.
func (o *Operations) Status(ctx context.Context) (StatusReport, error) {
	p := o.pipeline()
	var report StatusReport
	units, err := o.compile()
	if err != nil {
		return report, err
	}
	report.Current, err = p.releases.Current(ctx)
	if err != nil {
		return report, newStageError(StageControl, p.Host.String(), err)
	}

	templates := unit.Templates(units, p.plan.Processes)
	names := make([]string, len(templates))
	for i, template := range templates {
		names[i] = template.Name
	}
	live, err := LiveInstances(ctx, p.runner, names...)
	var commandErr *remote.CommandError
	if errors.As(err, &commandErr) {
		p.Logger.Debug("cannot list running instances", "error", err)
		live, err = nil, nil
	}
	if err != nil {
		return report, newStageError(StageControl, p.Host.String(), err)
	}

	var all []string
	for _, spec := range p.plan.Processes {
		status := ProcessStatus{Process: spec.Name}
		for _, name := range processUnits(units, spec, live) {
			status.Units = append(status.Units, UnitState{Name: name})
			all = append(all, name)
		}
		report.Processes = append(report.Processes, status)
	}
	if len(all) == 0 {
		return report, nil
	}
	states, err := UnitStates(ctx, p.runner, all)
	if err != nil {
		return report, newStageError(StageControl, p.Host.String(), err)
	}

	for i, spec := range p.plan.Processes {
		status := &report.Processes[i]
		checked := unit.ActiveUnits(units, []unit.ProcessSpec{spec})
		for j := range status.Units {
			state := &status.Units[j]
			state.State = states[state.Name]
			if slices.Contains(checked, state.Name) || isExtraInstance(units, spec, state.Name) {
				state.Checked = true
				status.Total++
				if state.State == "active" {
					status.Running++
				}
			}
		}
	}
	return report, nil
}

// processUnits lists the units of spec: its resolved units plus any
// live numbered instance beyond the configured count.
func processUnits(units []unit.UnitFile, spec unit.ProcessSpec, live map[string][]int) []string {
	names, _ := unit.Resolve(units, []unit.ProcessSpec{spec}, spec.Name)
	for _, template := range unit.Templates(units, []unit.ProcessSpec{spec}) {
		for _, n := range live[template.Name] {
			if name := unit.InstanceName(template.Name, n); !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names
}

// isExtraInstance reports whether name is an instance above the
// configured count of one of spec's checked templates.
func isExtraInstance(units []unit.UnitFile, spec unit.ProcessSpec, name string) bool {
	for _, template := range unit.Templates(units, []unit.ProcessSpec{spec}) {
		if spec.Socket && template.Kind != unit.KindSocket {
			continue
		}
		if n, ok := unit.InstanceNumber(template.Name, name); ok && n > spec.Replicas {
			return true
		}
	}
	return false
}

// Control starts, stops or restarts the units of a process, or of every
// process when reference is "". Started and restarted units are then
// verified like a deploy's. It returns the units acted on.
func (o *Operations) Control(ctx context.Context, verb, reference string) ([]string, error) {
	if verb != VerbStart && verb != VerbStop && verb != VerbRestart {
		return nil, &ConfigurationError{Err: fmt.Errorf("unknown service action %q", verb)}
	}
	units, err := o.compile()
	if err != nil {
		return nil, err
	}
	names, err := unit.Resolve(units, o.Plan.Processes, reference)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if len(names) == 0 {
		return nil, &ConfigurationError{Err: errors.New("no processes configured")}
	}

	p := o.pipeline()
	if err := systemctl(ctx, p.runner, []string{verb}, names...); err != nil {
		return names, newStageError(StageControl, p.Host.String(), p.withJournal(ctx, err))
	}
	if verb == VerbStop {
		return names, nil
	}
	var check []string
	for _, spec := range o.Plan.Processes {
		for _, name := range unit.ActiveUnits(units, []unit.ProcessSpec{spec}) {
			if slices.Contains(names, name) {
				check = append(check, name)
			}
		}
	}
	if err := p.verify(ctx, check); err != nil {
		return names, newStageError(StageControl, p.Host.String(), err)
	}
	return names, nil
}

// Logs shows the journal of a process's units on the runner's output.
// It returns the units whose journal was requested.
func (o *Operations) Logs(ctx context.Context, options LogOptions) ([]string, error) {
	if options.Level != "" && !slices.Contains(logLevels, options.Level) {
		return nil, &ConfigurationError{Err: fmt.Errorf("unknown log level %q; use one of %s", options.Level, strings.Join(logLevels, ", "))}
	}
	if options.Lines < 0 {
		return nil, &ConfigurationError{Err: fmt.Errorf("line count must not be negative, got %d", options.Lines)}
	}
	units, err := o.compile()
	if err != nil {
		return nil, err
	}
	names, err := unit.Resolve(units, o.Plan.Processes, options.Process)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if len(names) == 0 {
		return nil, &ConfigurationError{Err: errors.New("no processes configured")}
	}

	p := o.pipeline()
	command := journalCommand(names, options)
	// journalctl exits 1 when a grep matches nothing, which is not a
	// failure here.
	_, err = p.runner.Run(ctx, command, remote.RunOptions{Sudo: true, PTY: options.Follow})
	if err != nil && ctx.Err() == nil {
		return names, newStageError(StageControl, p.Host.String(), err)
	}
	return names, nil
}

func journalCommand(names []string, options LogOptions) string {
	arguments := []string{"journalctl", "--no-pager"}
	for _, name := range names {
		arguments = append(arguments, "-u", remote.Quote(name))
	}
	if options.Follow {
		arguments = append(arguments, "-f")
	} else {
		lines := options.Lines
		if lines == 0 {
			lines = DefaultLogLines
		}
		arguments = append(arguments, "-n", strconv.Itoa(lines))
	}
	if options.Level != "" {
		arguments = append(arguments, "-p", options.Level)
	}
	if options.Since != "" {
		arguments = append(arguments, "--since", remote.Quote(options.Since))
	}
	if options.Grep != "" {
		arguments = append(arguments, "--case-sensitive=false", "-g", remote.Quote(options.Grep))
	}
	return strings.Join(arguments, " ")
}
