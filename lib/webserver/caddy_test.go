// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package webserver

import (
	"reflect"
	"strings"
	"testing"

	"github.com/drydock-dev/drydock/lib/unit"
)

var testContext = unit.Context{App: "myapp", User: "myapp", AppDir: "/opt/apps/myapp", Mode: unit.ModePython, Webserver: true}

func TestRender(t *testing.T) {
	t.Parallel()
	specs := []unit.ProcessSpec{
		{Name: "web", Command: "gunicorn", Replicas: 2, Socket: true},
		{Name: "api", Command: "api", Replicas: 1, Listen: "localhost:9000"},
	}
	site := Site{
		App:    "myapp",
		Domain: "myapp.example.com",
		Routes: []Route{
			{Path: "/", Process: "web"},
			{Path: "/static/*", Static: "/opt/apps/myapp/current/static"},
			{Path: "/api/*", Process: "api"},
		},
	}

	got, err := Render(site, testContext, specs)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `# Caddyfile for myapp, generated by drydock

myapp.example.com {
	handle /static/* {
		root * /opt/apps/myapp/current/static
		file_server
	}

	handle /api/* {
		reverse_proxy localhost:9000
	}

	handle {
		reverse_proxy unix//run/myapp/web-1.sock unix//run/myapp/web-2.sock
	}
}
`
	if got != want {
		t.Errorf("Render mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestUpstreams(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		spec unit.ProcessSpec
		want []string
	}{
		{"singleton socket", unit.ProcessSpec{Name: "web", Replicas: 1, Socket: true}, []string{"unix//run/myapp/web.sock"}},
		{"socket on tcp", unit.ProcessSpec{Name: "web", Replicas: 1, Socket: true, Listen: "127.0.0.1:8001"}, []string{"127.0.0.1:8001"}},
		{"unix listen", unit.ProcessSpec{Name: "web", Replicas: 1, Listen: "/run/myapp/custom.sock"}, []string{"unix//run/myapp/custom.sock"}},
		{"fallback", unit.ProcessSpec{Name: "web", Replicas: 1}, []string{"localhost:8000"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := Upstreams(testContext, test.spec, "localhost:8000"); !reflect.DeepEqual(got, test.want) {
				t.Errorf("Upstreams = %v, want %v", got, test.want)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	specs := []unit.ProcessSpec{
		{Name: "web", Command: "gunicorn", Replicas: 1},
		{Name: "workers", Command: "worker", Replicas: 3},
		{Name: "job", Command: "job", Replicas: 1, Timer: &unit.TimerSpec{OnCalendar: "daily"}},
	}
	tests := []struct {
		name string
		site Site
		want string
	}{
		{"no domain", Site{Routes: []Route{{Path: "/", Upstream: "x:1"}}}, "domain is required"},
		{"unknown process", Site{Domain: "d", Routes: []Route{{Path: "/", Process: "ghost"}}}, `unknown process "ghost"`},
		{"replicas without socket", Site{Domain: "d", Routes: []Route{{Path: "/", Process: "workers"}}}, "no socket"},
		{"timer target", Site{Domain: "d", Upstream: "x:1", Routes: []Route{{Path: "/", Process: "job"}}}, "scheduled job"},
		{"no address", Site{Domain: "d", Routes: []Route{{Path: "/", Process: "web"}}}, "no default upstream"},
		{"two targets", Site{Domain: "d", Routes: []Route{{Path: "/", Static: "/srv", Upstream: "x:1"}}}, "exactly one"},
		{"relative path", Site{Domain: "d", Routes: []Route{{Path: "static", Static: "/srv"}}}, "must start with /"},
		{"duplicate path", Site{Domain: "d", Routes: []Route{{Path: "/", Static: "/a"}, {Path: "/", Static: "/b"}}}, "duplicate path"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := test.site.Validate(specs)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Validate = %v, want mention of %q", err, test.want)
			}
		})
	}
}
