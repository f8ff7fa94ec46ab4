// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"os"
	"reflect"
	"slices"
	"testing"

	"github.com/drydock-dev/drydock/lib/unit"
)

func (h *fakeHost) operations(plan Plan) *Operations {
	return &Operations{Plan: plan, Host: h.host, Runner: h.runner, Clock: h.clock}
}

func TestManualRollbackToPrevious(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, true)
	h.mustDeploy(h.plan("1.0.0"))
	before := h.unitSet()
	worker := unit.ProcessSpec{Name: "worker", Command: "myapp work", Replicas: 1}
	h.mustDeploy(h.plan("1.1.0", webProcess, worker))

	report, err := h.operations(h.plan("1.1.0")).Rollback(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if report.From != "1.1.0" || report.To != "1.0.0" || report.Unchanged || len(report.Removed) != 0 {
		t.Errorf("report = %+v", report)
	}
	if h.currentVersion() != "1.0.0" {
		t.Errorf("current = %q, want 1.0.0", h.currentVersion())
	}
	if !reflect.DeepEqual(h.unitSet(), before) {
		t.Errorf("units after rollback = %v, want %v", unitNames(h.unitSet()), unitNames(before))
	}
	if !slices.Contains(h.uninstalls, "1.1.0") {
		t.Errorf("uninstalls = %v, want 1.1.0 uninstalled", h.uninstalls)
	}
	if !reflect.DeepEqual(h.versions(), []string{"1.0.0", "1.1.0"}) {
		t.Errorf("versions = %v, want both kept", h.versions())
	}
	if !slices.Contains(h.systemctlCalls(), "systemctl restart myapp-web@1.service myapp-web@2.service") {
		t.Errorf("instances not restarted: %v", h.systemctlCalls())
	}
}

func TestManualRollbackClean(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, true)
	for _, version := range []string{"1.0.0", "1.1.0", "1.2.0"} {
		h.mustDeploy(h.plan(version))
	}

	report, err := h.operations(h.plan("1.2.0")).Rollback(context.Background(), "1.0.0", true)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if !reflect.DeepEqual(report.Removed, []string{"1.2.0", "1.1.0"}) {
		t.Errorf("removed = %v", report.Removed)
	}
	if h.currentVersion() != "1.0.0" || !reflect.DeepEqual(h.versions(), []string{"1.0.0"}) {
		t.Errorf("current %q, versions %v", h.currentVersion(), h.versions())
	}
}

func TestManualRollbackEdges(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, true)
	operations := h.operations(h.plan("1.0.0"))
	h.mustDeploy(h.plan("1.0.0"))

	_, err := operations.Rollback(context.Background(), "", false)
	if !errors.Is(err, ErrNoRollbackTarget) {
		t.Errorf("no older release: error = %v", err)
	}
	if code := KindExitCode(classify(err)); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}

	_, err = operations.Rollback(context.Background(), "9.9.9", false)
	var configuration *ConfigurationError
	if !errors.As(err, &configuration) {
		t.Errorf("unknown version: error = %v", err)
	}

	report, err := operations.Rollback(context.Background(), "1.0.0", false)
	if err != nil || !report.Unchanged {
		t.Errorf("active version: report %+v, error %v", report, err)
	}
	if len(h.uninstalls) != 0 {
		t.Errorf("uninstall ran: %v", h.uninstalls)
	}
}

func TestDown(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, true)
	h.mustDeploy(h.plan("1.0.0"))
	operations := h.operations(h.plan("1.0.0"))

	report, err := operations.Down(context.Background(), false)
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if report.Uninstalled != "1.0.0" || report.Purged {
		t.Errorf("report = %+v", report)
	}
	if h.currentVersion() != "" {
		t.Errorf("current link still points at %q", h.currentVersion())
	}
	if len(h.unitSet()) != 0 {
		t.Errorf("units left: %v", unitNames(h.unitSet()))
	}
	if !reflect.DeepEqual(h.versions(), []string{"1.0.0"}) {
		t.Errorf("versions = %v, want the archive kept", h.versions())
	}

	report, err = operations.Down(context.Background(), true)
	if err != nil {
		t.Fatalf("Down --full: %v", err)
	}
	if report.Uninstalled != "" || !report.Purged {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(h.layout.AppDir); !os.IsNotExist(err) {
		t.Errorf("app dir still present: %v", err)
	}
}

func TestScale(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, true)
	timer := unit.ProcessSpec{Name: "cleanup", Command: "myapp cleanup", Replicas: 1, Timer: &unit.TimerSpec{OnCalendar: "daily"}}
	plan := h.plan("1.0.0", webProcess, timer)
	h.mustDeploy(plan)
	operations := h.operations(plan)

	scale, spec, err := operations.PlanScale(context.Background(), "web", 3)
	if err != nil {
		t.Fatalf("PlanScale: %v", err)
	}
	if spec.Name != "web" || !reflect.DeepEqual(scale.Start, []string{"myapp-web@3.service"}) {
		t.Errorf("plan = %+v", scale)
	}
	if err := operations.Scale(context.Background(), scale); err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if !slices.Contains(h.systemctlCalls(), "systemctl enable --quiet --now myapp-web@3.service") {
		t.Errorf("instance not started: %v", h.systemctlCalls())
	}

	var configuration *ConfigurationError
	for _, process := range []string{"cleanup", "missing"} {
		if _, _, err := operations.PlanScale(context.Background(), process, 2); !errors.As(err, &configuration) {
			t.Errorf("PlanScale(%s): error = %v, want ConfigurationError", process, err)
		}
	}
}

func TestScaleStartsFromLiveInstances(t *testing.T) {
	t.Parallel()
	h := newFakeHost(t, true)
	plan := h.plan("1.0.0")
	h.mustDeploy(plan)
	operations := h.operations(plan)
	ctx := context.Background()

	up, _, err := operations.PlanScale(ctx, "web", 4)
	if err != nil {
		t.Fatalf("PlanScale(4): %v", err)
	}
	if err := operations.Scale(ctx, up); err != nil {
		t.Fatalf("Scale(4): %v", err)
	}

	// The configuration still says two replicas; four are running.
	down, _, err := operations.PlanScale(ctx, "web", 3)
	if err != nil {
		t.Fatalf("PlanScale(3): %v", err)
	}
	if down.From != 4 || !reflect.DeepEqual(down.Stop, []string{"myapp-web@4.service"}) || len(down.Start) != 0 {
		t.Errorf("plan = %+v, want @4 stopped from 4", down)
	}
	if err := operations.Scale(ctx, down); err != nil {
		t.Fatalf("Scale(3): %v", err)
	}
	want := []string{"myapp-web@1.service", "myapp-web@2.service", "myapp-web@3.service"}
	if got := h.liveUnits(); !reflect.DeepEqual(got, want) {
		t.Errorf("live units = %v, want %v", got, want)
	}

	again, _, err := operations.PlanScale(ctx, "web", 3)
	if err != nil || !again.Noop() {
		t.Errorf("repeat plan = %+v, error %v, want no-op", again, err)
	}

	offline := &Operations{Plan: plan, Host: h.host}
	configured, _, err := offline.PlanScale(ctx, "web", 3)
	if err != nil || configured.From != 2 {
		t.Errorf("offline plan = %+v, error %v, want from the configured 2", configured, err)
	}
}
