// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"reflect"
	"testing"
)

func TestPlanScale(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		from, to int
		stop     []string
		start    []string
		keep     []string
		reshape  bool
	}{
		{
			name: "scale up", from: 2, to: 4,
			start: []string{"myapp-web@3.service", "myapp-web@4.service"},
			keep:  []string{"myapp-web@1.service", "myapp-web@2.service"},
		},
		{
			name: "scale down", from: 5, to: 2,
			stop: []string{"myapp-web@5.service", "myapp-web@4.service", "myapp-web@3.service"},
			keep: []string{"myapp-web@1.service", "myapp-web@2.service"},
		},
		{
			name: "unchanged", from: 3, to: 3,
			keep: []string{"myapp-web@1.service", "myapp-web@2.service", "myapp-web@3.service"},
		},
		{name: "singleton to template", from: 1, to: 3, reshape: true},
		{name: "template to singleton", from: 3, to: 1, reshape: true},
		{name: "singleton unchanged", from: 1, to: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			plan, err := PlanScale("myapp", "web", test.from, test.to)
			if err != nil {
				t.Fatalf("PlanScale: %v", err)
			}
			if plan.Reshape != test.reshape {
				t.Errorf("Reshape = %v, want %v", plan.Reshape, test.reshape)
			}
			if !reflect.DeepEqual(plan.Stop, test.stop) {
				t.Errorf("Stop = %v, want %v", plan.Stop, test.stop)
			}
			if !reflect.DeepEqual(plan.Start, test.start) {
				t.Errorf("Start = %v, want %v", plan.Start, test.start)
			}
			if !reflect.DeepEqual(plan.Keep, test.keep) {
				t.Errorf("Keep = %v, want %v", plan.Keep, test.keep)
			}
		})
	}
}

func TestPlanScaleArithmetic(t *testing.T) {
	t.Parallel()
	for from := 2; from <= 6; from++ {
		for to := 2; to <= 6; to++ {
			plan, err := PlanScale("myapp", "worker", from, to)
			if err != nil {
				t.Fatalf("PlanScale(%d, %d): %v", from, to, err)
			}
			if len(plan.Stop) != max(0, from-to) || len(plan.Start) != max(0, to-from) || len(plan.Keep) != min(from, to) {
				t.Errorf("PlanScale(%d, %d): stop %d start %d keep %d", from, to, len(plan.Stop), len(plan.Start), len(plan.Keep))
			}
		}
	}
}

func TestPlanScaleRejects(t *testing.T) {
	t.Parallel()
	if _, err := PlanScale("myapp", "web", 2, 0); err == nil {
		t.Error("PlanScale accepted zero replicas")
	}
	if _, err := PlanScale("myapp", "web; rm -rf /", 1, 2); err == nil {
		t.Error("PlanScale accepted an invalid process name")
	}
}

func TestInstanceNames(t *testing.T) {
	t.Parallel()
	if got := InstanceNames("myapp-web.service", 3); !reflect.DeepEqual(got, []string{"myapp-web.service"}) {
		t.Errorf("singleton = %v", got)
	}
	want := []string{"myapp-web@1.socket", "myapp-web@2.socket"}
	if got := InstanceNames("myapp-web@.socket", 2); !reflect.DeepEqual(got, want) {
		t.Errorf("template = %v, want %v", got, want)
	}
}

func compiledFixture(t *testing.T) ([]UnitFile, []ProcessSpec) {
	t.Helper()
	specs := []ProcessSpec{
		{Name: "web", Command: "gunicorn", Replicas: 2, Socket: true},
		{Name: "worker", Command: "worker", Replicas: 2},
		{Name: "cleanup", Command: "cleanup", Replicas: 1, Timer: &TimerSpec{OnCalendar: "daily"}},
	}
	units, err := Compile(testContext(), specs)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return units, specs
}

func TestActiveUnits(t *testing.T) {
	t.Parallel()
	units, specs := compiledFixture(t)
	want := []string{
		"myapp-web@1.socket", "myapp-web@2.socket",
		"myapp-worker@1.service", "myapp-worker@2.service",
		"myapp-cleanup.timer",
	}
	if got := ActiveUnits(units, specs); !reflect.DeepEqual(got, want) {
		t.Errorf("ActiveUnits = %v\nwant %v", got, want)
	}
}

func TestPlanRestart(t *testing.T) {
	t.Parallel()
	units, specs := compiledFixture(t)
	previous := Digests(units)

	plan := PlanRestart(units, specs, previous, false)
	if len(plan.Restart) != 0 {
		t.Errorf("unchanged release restarts %v", plan.Restart)
	}
	if len(plan.Start) != 5 {
		t.Errorf("Start = %v, want all five active units", plan.Start)
	}

	previous["myapp-web@.service.d/10-drydock.conf"] = "blake3:stale"
	plan = PlanRestart(units, specs, previous, false)
	wantRestart := []string{"myapp-web@1.service", "myapp-web@2.service", "myapp-web@1.socket", "myapp-web@2.socket"}
	if !reflect.DeepEqual(plan.Restart, wantRestart) {
		t.Errorf("Restart = %v, want %v", plan.Restart, wantRestart)
	}

	plan = PlanRestart(units, specs, previous, true)
	if len(plan.Start) != 0 {
		t.Errorf("full restart leaves %v only started", plan.Start)
	}
	if plan = PlanRestart(units, specs, nil, false); len(plan.Start) != 0 {
		t.Errorf("first deploy leaves %v only started", plan.Start)
	}
}

func TestInstanceNumber(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"myapp-web@3.service", 3, true},
		{"myapp-web@12.service", 12, true},
		{"myapp-web@3.socket", 0, false},
		{"myapp-web@.service", 0, false},
		{"myapp-web@0.service", 0, false},
		{"myapp-web@0-10.0.0.1:80.service", 0, false},
		{"myapp-webhook@1.service", 0, false},
	}
	for _, test := range tests {
		n, ok := InstanceNumber("myapp-web@.service", test.name)
		if n != test.want || ok != test.ok {
			t.Errorf("InstanceNumber(%q) = %d, %v, want %d, %v", test.name, n, ok, test.want, test.ok)
		}
	}
	if _, ok := InstanceNumber("myapp-web.service", "myapp-web.service"); ok {
		t.Error("singleton reported as an instance")
	}
}

func TestTemplates(t *testing.T) {
	t.Parallel()
	units, specs := compiledFixture(t)
	var names []string
	for _, template := range Templates(units, specs) {
		names = append(names, template.Name)
	}
	want := []string{"myapp-web@.service", "myapp-web@.socket", "myapp-worker@.service"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Templates = %v, want %v", names, want)
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		live  []int
		to    int
		from  int
		stop  []string
		start []string
		keep  []string
	}{
		{
			name: "scaled up earlier", live: []int{1, 2, 3, 4}, to: 3, from: 4,
			stop: []string{"myapp-web@4.service"},
			keep: []string{"myapp-web@1.service", "myapp-web@2.service", "myapp-web@3.service"},
		},
		{
			name: "gap", live: []int{1, 5}, to: 3, from: 2,
			stop:  []string{"myapp-web@5.service"},
			start: []string{"myapp-web@2.service", "myapp-web@3.service"},
			keep:  []string{"myapp-web@1.service"},
		},
		{
			name: "nothing running", to: 2,
			start: []string{"myapp-web@1.service", "myapp-web@2.service"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			plan, err := Reconcile("myapp", "web", test.live, test.to)
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if plan.From != test.from || plan.Reshape {
				t.Errorf("from = %d, reshape = %v", plan.From, plan.Reshape)
			}
			if !reflect.DeepEqual(plan.Stop, test.stop) {
				t.Errorf("stop = %v, want %v", plan.Stop, test.stop)
			}
			if !reflect.DeepEqual(plan.Start, test.start) {
				t.Errorf("start = %v, want %v", plan.Start, test.start)
			}
			if !reflect.DeepEqual(plan.Keep, test.keep) {
				t.Errorf("keep = %v, want %v", plan.Keep, test.keep)
			}
		})
	}

	if _, err := Reconcile("myapp", "web", nil, 0); err == nil {
		t.Error("Reconcile accepted zero replicas")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	units, specs := compiledFixture(t)
	tests := []struct {
		reference string
		want      []string
	}{
		{"web", []string{"myapp-web@1.service", "myapp-web@2.service", "myapp-web@1.socket", "myapp-web@2.socket"}},
		{"web.socket", []string{"myapp-web@1.socket", "myapp-web@2.socket"}},
		{"worker.service", []string{"myapp-worker@1.service", "myapp-worker@2.service"}},
		{"cleanup", []string{"myapp-cleanup.service", "myapp-cleanup.timer"}},
		{"cleanup.timer", []string{"myapp-cleanup.timer"}},
	}
	for _, test := range tests {
		got, err := Resolve(units, specs, test.reference)
		if err != nil {
			t.Errorf("Resolve(%q): %v", test.reference, err)
			continue
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("Resolve(%q) = %v, want %v", test.reference, got, test.want)
		}
	}

	all, err := Resolve(units, specs, "")
	if err != nil || len(all) != 8 {
		t.Errorf("Resolve(all) = %v, %v, want 8 units", all, err)
	}
	for _, reference := range []string{"missing", "worker.timer"} {
		if _, err := Resolve(units, specs, reference); err == nil {
			t.Errorf("Resolve(%q) succeeded", reference)
		}
	}
}
