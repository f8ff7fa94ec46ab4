// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/unit"
)

// systemctl runs one systemctl invocation as root. args is the verb
// and its flags. A non-zero exit becomes a ServiceError naming the
// units involved.
func systemctl(ctx context.Context, runner remote.Runner, args []string, units ...string) error {
	arguments := append([]string{"systemctl"}, args...)
	for _, name := range units {
		arguments = append(arguments, remote.Quote(name))
	}
	_, err := runner.Run(ctx, strings.Join(arguments, " "), remote.RunOptions{Hide: true, Strict: true, Sudo: true})
	var commandErr *remote.CommandError
	if errors.As(err, &commandErr) {
		return &ServiceError{
			Unit:  strings.Join(units, " "),
			State: args[0] + " failed",
			Err:   err,
		}
	}
	return err
}

// startUnits reloads systemd, enables enable, restarts restart and
// starts start.
func (p *Pipeline) startUnits(ctx context.Context, enable, restart, start []string) error {
	if err := systemctl(ctx, p.runner, []string{"daemon-reload"}); err != nil {
		return err
	}
	if len(enable) > 0 {
		if err := systemctl(ctx, p.runner, []string{"enable", "--quiet"}, enable...); err != nil {
			return err
		}
	}
	if len(restart) > 0 {
		if err := systemctl(ctx, p.runner, []string{"restart"}, restart...); err != nil {
			return p.withJournal(ctx, err)
		}
	}
	if len(start) > 0 {
		if err := systemctl(ctx, p.runner, []string{"start"}, start...); err != nil {
			return p.withJournal(ctx, err)
		}
	}
	return nil
}

// withJournal attaches the journal of a single failed unit.
func (p *Pipeline) withJournal(ctx context.Context, err error) error {
	var service *ServiceError
	if errors.As(err, &service) && !strings.Contains(service.Unit, " ") {
		service.Journal = p.journal(ctx, service.Unit)
	}
	return err
}

// UnitStates asks systemd for the active state of each unit. Units
// missing from the output are reported as "unknown".
func UnitStates(ctx context.Context, runner remote.Runner, units []string) (map[string]string, error) {
	quoted := make([]string, len(units))
	for i, name := range units {
		quoted[i] = remote.Quote(name)
	}
	// is-active exits non-zero when any unit is inactive; the states
	// are still printed one per line.
	result, err := runner.Run(ctx, "systemctl is-active "+strings.Join(quoted, " "), remote.RunOptions{Hide: true})
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	states := make(map[string]string, len(units))
	for i, name := range units {
		state := "unknown"
		if i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			state = strings.TrimSpace(lines[i])
		}
		states[name] = state
	}
	return states, nil
}

// verify polls until every unit is active. Before poll k it waits
// k × VerifyInterval. A unit in the failed state ends the wait early.
func (p *Pipeline) verify(ctx context.Context, units []string) error {
	if len(units) == 0 {
		return nil
	}
	var states map[string]string
	for attempt := 1; attempt <= p.plan.VerifyAttempts; attempt++ {
		if err := p.sleep(ctx, time.Duration(attempt)*p.plan.VerifyInterval); err != nil {
			return err
		}
		var err error
		states, err = UnitStates(ctx, p.runner, units)
		if err != nil {
			return err
		}

		pending := 0
		for _, name := range units {
			switch states[name] {
			case "active":
			case "failed":
				return p.serviceFailure(ctx, name, "failed")
			default:
				pending++
			}
		}
		if pending == 0 {
			p.Logger.Info("units active", "count", len(units), "attempt", attempt)
			return nil
		}
		p.Logger.Debug("waiting for units", "pending", pending, "attempt", attempt)
	}

	for _, name := range units {
		if states[name] != "active" {
			return p.serviceFailure(ctx, name, states[name])
		}
	}
	return nil
}

func (p *Pipeline) serviceFailure(ctx context.Context, name, state string) error {
	return &ServiceError{Unit: name, State: state, Journal: p.journal(ctx, name)}
}

// journal returns the unit's last journal lines, or "" when they
// cannot be read.
func (p *Pipeline) journal(ctx context.Context, name string) string {
	command := "journalctl --no-pager --output=short-iso -n " + strconv.Itoa(journalLines) + " -u " + remote.Quote(name)
	result, err := p.runner.Run(ctx, command, remote.RunOptions{Hide: true, Sudo: true})
	if err != nil || !result.OK {
		return ""
	}
	return strings.TrimRight(result.Stdout, "\n")
}

// LiveInstances asks systemd which numbered instances of each template
// are loaded, running or not. The result maps each template name to
// its instance numbers in ascending order; templates with no loaded
// instance are absent.
func LiveInstances(ctx context.Context, runner remote.Runner, templates ...string) (map[string][]int, error) {
	if len(templates) == 0 {
		return nil, nil
	}
	arguments := []string{"systemctl", "list-units", "--all", "--plain", "--no-legend"}
	for _, template := range templates {
		arguments = append(arguments, remote.Quote(strings.Replace(template, "@.", "@*.", 1)))
	}
	result, err := runner.Run(ctx, strings.Join(arguments, " "), remote.RunOptions{Hide: true, Strict: true})
	if err != nil {
		return nil, err
	}

	live := make(map[string][]int)
	for line := range strings.Lines(result.Stdout) {
		fields := strings.Fields(line)
		// Failed units carry a status marker ahead of the name.
		if len(fields) > 0 && fields[0] == "●" {
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}
		for _, template := range templates {
			if n, ok := unit.InstanceNumber(template, fields[0]); ok {
				live[template] = append(live[template], n)
			}
		}
	}
	for template := range live {
		slices.Sort(live[template])
		live[template] = slices.Compact(live[template])
	}
	return live, nil
}

// stopSurplus stops and disables the instances left over from a higher
// replica count. Instance names do not change with the count, so the
// install script cannot tell them apart from current units.
func (p *Pipeline) stopSurplus(ctx context.Context) ([]string, error) {
	templates := unit.Templates(p.units, p.plan.Processes)
	if len(templates) == 0 {
		return nil, nil
	}
	names := make([]string, len(templates))
	for i, template := range templates {
		names[i] = template.Name
	}
	live, err := LiveInstances(ctx, p.runner, names...)
	if err != nil {
		var commandErr *remote.CommandError
		if errors.As(err, &commandErr) {
			p.Logger.Warn("cannot list running instances; surplus instances are left alone", "error", err)
			return nil, nil
		}
		return nil, err
	}

	replicas := make(map[string]int, len(p.plan.Processes))
	for _, spec := range p.plan.Processes {
		replicas[spec.Name] = spec.Replicas
	}
	var surplus []string
	for _, template := range templates {
		instances := live[template.Name]
		for i := len(instances) - 1; i >= 0 && instances[i] > replicas[template.Process]; i-- {
			surplus = append(surplus, unit.InstanceName(template.Name, instances[i]))
		}
	}
	if len(surplus) == 0 {
		return nil, nil
	}
	p.Logger.Info("stopping surplus instances", "units", surplus)
	if err := systemctl(ctx, p.runner, []string{"disable", "--quiet", "--now"}, surplus...); err != nil {
		return nil, err
	}
	return surplus, nil
}

// ApplyScale executes a scale plan: surplus instances are stopped and
// disabled, highest first, then new instances are enabled and started.
// Reshaping plans cannot be applied to running units.
func ApplyScale(ctx context.Context, runner remote.Runner, plan unit.ScalePlan) error {
	if plan.Reshape {
		return &ConfigurationError{Err: errors.New("changing between one and several replicas changes the unit file; update the configuration and redeploy")}
	}
	if len(plan.Stop) > 0 {
		if err := systemctl(ctx, runner, []string{"disable", "--quiet", "--now"}, plan.Stop...); err != nil {
			return err
		}
	}
	if len(plan.Start) > 0 {
		if err := systemctl(ctx, runner, []string{"enable", "--quiet", "--now"}, plan.Start...); err != nil {
			return err
		}
	}
	return nil
}
