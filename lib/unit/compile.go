// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/drydock-dev/drydock/lib/digest"
)

// Kind classifies a compiled file.
type Kind string

const (
	KindService Kind = "service"
	KindSocket  Kind = "socket"
	KindTimer   Kind = "timer"
	KindDropIn  Kind = "dropin"
)

// UnitFile is one compiled file destined for /etc/systemd/system.
type UnitFile struct {
	// Name is the path relative to the systemd directory: a unit file
	// name, or "<unit>.d/<file>.conf" for drop-ins.
	Name string

	Body string

	// Template marks files that belong to a template unit.
	Template bool

	Kind Kind

	// Process is the ProcessSpec name this file was compiled from.
	Process string

	// Digest is the BLAKE3 content digest of Body.
	Digest string
}

func newUnitFile(name, content string, kind Kind, spec ProcessSpec) UnitFile {
	return UnitFile{
		Name:     name,
		Body:     content,
		Template: spec.Template(),
		Kind:     kind,
		Process:  spec.Name,
		Digest:   digest.Content([]byte(content)),
	}
}

// Compile renders every unit file for specs. Specs are validated,
// names must be unique, and operator drop-ins are discovered from
// c.DropInDir and attached to their services. The output order is
// deterministic: specs in the given order, each as service, socket,
// timer, then drop-ins in lexical order.
func Compile(c Context, specs []ProcessSpec) ([]UnitFile, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate process name %q", spec.Name)
		}
		seen[spec.Name] = true
	}

	dropIns := &DropIns{}
	if c.DropInDir != "" {
		discovered, err := DiscoverDropIns(c.DropInDir)
		if err != nil {
			return nil, err
		}
		dropIns = discovered
	}
	var unknown []string
	for process := range dropIns.Process {
		if !seen[process] {
			unknown = append(unknown, process)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("drop-in directories for unknown processes: %s", strings.Join(unknown, ", "))
	}

	var units []UnitFile
	for _, spec := range specs {
		service := c.ServiceName(spec)
		units = append(units, newUnitFile(service, RenderService(c, spec), KindService, spec))
		if spec.Socket {
			units = append(units, newUnitFile(c.SocketName(spec), RenderSocket(c, spec), KindSocket, spec))
		}
		if spec.Timer != nil {
			units = append(units, newUnitFile(c.TimerName(spec), RenderTimer(c, spec), KindTimer, spec))
		}

		dropInDir := service + ".d"
		units = append(units, newUnitFile(path.Join(dropInDir, BaseDropInName), RenderBaseDropIn(c, spec), KindDropIn, spec))
		for _, dropIn := range mergeDropIns(dropIns.Common, dropIns.Process[spec.Name]) {
			units = append(units, newUnitFile(path.Join(dropInDir, dropIn.Name), string(dropIn.Content), KindDropIn, spec))
		}
	}
	return units, nil
}

// mergeDropIns combines common and per-process drop-ins. A
// per-process file replaces a common file of the same name.
func mergeDropIns(common, process []DropIn) []DropIn {
	byName := make(map[string]DropIn, len(common)+len(process))
	for _, dropIn := range common {
		byName[dropIn.Name] = dropIn
	}
	for _, dropIn := range process {
		byName[dropIn.Name] = dropIn
	}
	merged := make([]DropIn, 0, len(byName))
	for _, dropIn := range byName {
		merged = append(merged, dropIn)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged
}

// Digests maps unit file names to content digests. It is the form
// stored in bundle manifests and compared across releases.
func Digests(units []UnitFile) map[string]string {
	digests := make(map[string]string, len(units))
	for _, unit := range units {
		digests[unit.Name] = unit.Digest
	}
	return digests
}

// Installed lists the top-level unit file names, without drop-ins.
// The install script records this list to find stale units on the
// next deploy.
func Installed(units []UnitFile) []string {
	var names []string
	for _, unit := range units {
		if unit.Kind != KindDropIn {
			names = append(names, unit.Name)
		}
	}
	return names
}
