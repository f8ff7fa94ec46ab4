// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"fmt"
	"slices"
	"strings"
)

// Resolve turns a process reference into the concrete units it names.
// An empty reference is every process. A bare process name ("web") is
// its service instances followed by its socket or timer; a suffixed
// one ("web.socket") is only that kind.
func Resolve(units []UnitFile, specs []ProcessSpec, reference string) ([]string, error) {
	if reference == "" {
		var names []string
		for _, spec := range specs {
			names = append(names, processUnits(units, spec, "")...)
		}
		return names, nil
	}

	name, kind := reference, Kind("")
	for _, suffix := range []Kind{KindService, KindSocket, KindTimer} {
		if trimmed, ok := strings.CutSuffix(reference, "."+string(suffix)); ok {
			name, kind = trimmed, suffix
			break
		}
	}
	index := slices.IndexFunc(specs, func(spec ProcessSpec) bool { return spec.Name == name })
	if index < 0 {
		available := make([]string, len(specs))
		for i, spec := range specs {
			available[i] = spec.Name
		}
		return nil, fmt.Errorf("unknown process %q; available: %s", name, strings.Join(available, ", "))
	}
	names := processUnits(units, specs[index], kind)
	if len(names) == 0 {
		return nil, fmt.Errorf("process %s has no %s unit", name, kind)
	}
	return names, nil
}

func processUnits(units []UnitFile, spec ProcessSpec, kind Kind) []string {
	var names []string
	for _, want := range []Kind{KindService, KindSocket, KindTimer} {
		if kind != "" && kind != want {
			continue
		}
		for _, unit := range units {
			if unit.Process == spec.Name && unit.Kind == want {
				names = append(names, InstanceNames(unit.Name, spec.Replicas)...)
			}
		}
	}
	return names
}
