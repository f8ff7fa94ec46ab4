// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/drydock-dev/drydock/lib/remote/remotetest"
	"github.com/drydock-dev/drydock/lib/unit"
)

func TestApplyScale(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, false)

	down, err := unit.PlanScale("myapp", "web", 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyScale(context.Background(), h.runner, down); err != nil {
		t.Fatal(err)
	}
	up, err := unit.PlanScale("myapp", "web", 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyScale(context.Background(), h.runner, up); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"systemctl disable --quiet --now myapp-web@4.service myapp-web@3.service",
		"systemctl enable --quiet --now myapp-web@3.service",
	}
	if got := h.systemctlCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("systemctl calls = %q, want %q", got, want)
	}
}

func TestApplyScaleReshape(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, false)
	plan, err := unit.PlanScale("myapp", "web", 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	var configuration *ConfigurationError
	if err := ApplyScale(context.Background(), h.runner, plan); !errors.As(err, &configuration) {
		t.Errorf("error = %v, want ConfigurationError", err)
	}
	if len(h.runner.Commands()) != 0 {
		t.Errorf("commands ran: %v", h.runner.Commands())
	}
}

func TestUnitStates(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, false)
	h.runner.SetIntercept(func(string) (remotetest.Reply, bool) {
		return remotetest.Reply{Stdout: "active\nactivating\n", ExitCode: 3}, true
	})

	states, err := UnitStates(context.Background(), h.runner, []string{"a.service", "b.service", "c.service"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"a.service": "active", "b.service": "activating", "c.service": "unknown"}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}
