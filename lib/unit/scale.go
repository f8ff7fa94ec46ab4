// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// InstanceNames expands a template unit name into its concrete
// instances @1 through @replicas. A non-template name is returned
// unchanged as the only element.
func InstanceNames(name string, replicas int) []string {
	if !strings.Contains(name, "@.") {
		return []string{name}
	}
	return instanceRange(name, 1, replicas)
}

func instanceRange(template string, first, last int) []string {
	var names []string
	for instance := first; instance <= last; instance++ {
		names = append(names, InstanceName(template, instance))
	}
	return names
}

// InstanceName is instance n of template, so myapp-web@3.service for
// myapp-web@.service and 3.
func InstanceName(template string, n int) string {
	return strings.Replace(template, "@.", "@"+strconv.Itoa(n)+".", 1)
}

// InstanceNumber reports which numbered instance of template name is.
// Instances with other names, such as those an Accept=yes socket
// spawns, report false.
func InstanceNumber(template, name string) (int, bool) {
	prefix, suffix, ok := strings.Cut(template, "@.")
	if !ok {
		return 0, false
	}
	prefix, suffix = prefix+"@", "."+suffix
	if len(name) <= len(prefix)+len(suffix) || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix) : len(name)-len(suffix)])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Templates lists the template unit files compiled for specs: services
// and sockets whose instances systemd runs, without drop-ins.
func Templates(units []UnitFile, specs []ProcessSpec) []UnitFile {
	var templates []UnitFile
	for _, spec := range specs {
		for _, unit := range units {
			if unit.Process == spec.Name && unit.Template && (unit.Kind == KindService || unit.Kind == KindSocket) {
				templates = append(templates, unit)
			}
		}
	}
	return templates
}

// ActiveUnits lists every concrete unit that must reach the active
// state after a deploy, in spec order. A scheduled process is checked
// through its timer, a socket-activated process through its sockets,
// and anything else through each service instance.
func ActiveUnits(units []UnitFile, specs []ProcessSpec) []string {
	var active []string
	for _, spec := range specs {
		kind := KindService
		switch {
		case spec.Timer != nil:
			kind = KindTimer
		case spec.Socket:
			kind = KindSocket
		}
		for _, unit := range units {
			if unit.Process == spec.Name && unit.Kind == kind {
				active = append(active, InstanceNames(unit.Name, spec.Replicas)...)
			}
		}
	}
	return active
}

// ServiceInstances lists the concrete service units of every spec,
// including those started by a socket or timer.
func ServiceInstances(units []UnitFile, specs []ProcessSpec) []string {
	var services []string
	for _, spec := range specs {
		for _, unit := range units {
			if unit.Process == spec.Name && unit.Kind == KindService {
				services = append(services, InstanceNames(unit.Name, spec.Replicas)...)
			}
		}
	}
	return services
}

// RestartPlan splits the active units of a deploy into those that must
// be restarted because their content changed and those that only need
// to be running.
type RestartPlan struct {
	Restart []string
	Start   []string
}

// PlanRestart compares the compiled units with the digests recorded
// for the previous release. A process is restarted when any of its
// files (service, socket, timer or drop-in) changed or is new; its
// socket-activated services are restarted alongside the sockets. With
// full set, or when there is no previous release, everything is
// restarted.
func PlanRestart(units []UnitFile, specs []ProcessSpec, previous map[string]string, full bool) RestartPlan {
	changed := make(map[string]bool)
	for _, unit := range units {
		if full || previous == nil || previous[unit.Name] != unit.Digest {
			changed[unit.Process] = true
		}
	}

	var plan RestartPlan
	for _, spec := range specs {
		active := ActiveUnits(units, []ProcessSpec{spec})
		if !changed[spec.Name] {
			plan.Start = append(plan.Start, active...)
			continue
		}
		if spec.Socket {
			plan.Restart = append(plan.Restart, ServiceInstances(units, []ProcessSpec{spec})...)
		}
		plan.Restart = append(plan.Restart, active...)
	}
	return plan
}

// ScalePlan is the set of instance operations that change a template
// process from From to To replicas.
type ScalePlan struct {
	// Template is the template service name, {app}-{proc}@.service.
	Template string
	From     int
	To       int

	// Stop lists instances to stop and disable, highest first.
	Stop []string
	// Start lists instances to enable and start.
	Start []string
	// Keep lists instances left untouched.
	Keep []string

	// Reshape is set when the change crosses between a singleton
	// (one replica) and a template (several). That changes the unit
	// file itself and needs a redeploy instead of instance operations.
	Reshape bool
}

// PlanScale computes the instance operations for changing process
// proc of app from from to to replicas. Instances 1..min(from, to) are
// kept, instances above to are stopped, and instances above from are
// started.
func PlanScale(app, proc string, from, to int) (ScalePlan, error) {
	if from < 1 || to < 1 {
		return ScalePlan{}, fmt.Errorf("replica counts must be at least 1, got %d -> %d", from, to)
	}
	if !processNamePattern.MatchString(proc) {
		return ScalePlan{}, fmt.Errorf("invalid process name %q", proc)
	}

	plan := ScalePlan{
		Template: unitName(app, proc, true, "service"),
		From:     from,
		To:       to,
	}
	if (from == 1) != (to == 1) {
		plan.Reshape = true
		return plan, nil
	}
	if from == 1 {
		return plan, nil
	}

	plan.Keep = instanceRange(plan.Template, 1, min(from, to))
	plan.Start = instanceRange(plan.Template, from+1, to)
	plan.Stop = instanceRange(plan.Template, to+1, from)
	slices.Reverse(plan.Stop)
	return plan, nil
}

// Reconcile plans the change of process proc to to replicas from the
// instances actually running, live. Live instances above to are
// stopped, highest first, and instances 1..to that are not live are
// started. Unlike PlanScale it never reshapes: live instances only
// exist for a template.
func Reconcile(app, proc string, live []int, to int) (ScalePlan, error) {
	if to < 1 {
		return ScalePlan{}, fmt.Errorf("replica counts must be at least 1, got %d", to)
	}
	if !processNamePattern.MatchString(proc) {
		return ScalePlan{}, fmt.Errorf("invalid process name %q", proc)
	}

	plan := ScalePlan{
		Template: unitName(app, proc, true, "service"),
		From:     len(live),
		To:       to,
	}
	running := make(map[int]bool, len(live))
	for _, n := range live {
		running[n] = true
	}
	for n := 1; n <= to; n++ {
		if running[n] {
			plan.Keep = append(plan.Keep, InstanceName(plan.Template, n))
		} else {
			plan.Start = append(plan.Start, InstanceName(plan.Template, n))
		}
	}
	surplus := slices.Sorted(maps.Keys(running))
	slices.Reverse(surplus)
	for _, n := range surplus {
		if n > to {
			plan.Stop = append(plan.Stop, InstanceName(plan.Template, n))
		}
	}
	return plan, nil
}

// Noop reports whether the plan changes nothing.
func (p ScalePlan) Noop() bool {
	return !p.Reshape && len(p.Start) == 0 && len(p.Stop) == 0
}
