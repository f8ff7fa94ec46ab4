// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"strings"
	"testing"
)

func testContext() Context {
	return Context{
		App:       "myapp",
		User:      "myapp",
		AppDir:    "/opt/apps/myapp",
		Mode:      ModePython,
		Webserver: true,
	}
}

func TestRenderSingletonService(t *testing.T) {
	t.Parallel()
	spec := ProcessSpec{Name: "web", Command: ".venv/bin/gunicorn app:app", Replicas: 1, Listen: "localhost:8000"}

	want := `# myapp-web.service, generated by drydock

[Unit]
Description=myapp web
After=network.target

[Service]
Type=simple
ExecStart=/opt/apps/myapp/current/.venv/bin/gunicorn app:app

[Install]
WantedBy=multi-user.target
`
	if got := RenderService(testContext(), spec); got != want {
		t.Errorf("RenderService mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderTemplateSocketService(t *testing.T) {
	t.Parallel()
	spec := ProcessSpec{Name: "web", Command: ".venv/bin/gunicorn app:app", Replicas: 3, Socket: true}

	wantService := `# myapp-web@.service, generated by drydock

[Unit]
Description=myapp web %i
After=network.target
Requires=myapp-web@%i.socket
After=myapp-web@%i.socket

[Service]
Type=simple
ExecStart=/opt/apps/myapp/current/.venv/bin/gunicorn app:app
`
	if got := RenderService(testContext(), spec); got != wantService {
		t.Errorf("RenderService mismatch\ngot:\n%s\nwant:\n%s", got, wantService)
	}

	wantSocket := `# myapp-web@.socket, generated by drydock

[Unit]
Description=myapp web socket %i
PartOf=myapp-web@%i.service

[Socket]
ListenStream=/run/myapp/web-%i.sock
Accept=no
SocketUser=myapp
SocketGroup=myapp
SocketMode=0660

[Install]
WantedBy=sockets.target
`
	if got := RenderSocket(testContext(), spec); got != wantSocket {
		t.Errorf("RenderSocket mismatch\ngot:\n%s\nwant:\n%s", got, wantSocket)
	}
}

func TestRenderSocketWithoutWebserver(t *testing.T) {
	t.Parallel()
	context := testContext()
	context.Webserver = false
	spec := ProcessSpec{Name: "api", Command: "/usr/bin/api", Replicas: 1, Socket: true, Listen: "127.0.0.1:9000"}

	want := `# myapp-api.socket, generated by drydock

[Unit]
Description=myapp api socket
PartOf=myapp-api.service

[Socket]
ListenStream=127.0.0.1:9000
Accept=no
SocketUser=myapp
SocketMode=0600

[Install]
WantedBy=sockets.target
`
	if got := RenderSocket(context, spec); got != want {
		t.Errorf("RenderSocket mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderTimerAndOneshot(t *testing.T) {
	t.Parallel()
	spec := ProcessSpec{
		Name:     "cleanup",
		Command:  ".venv/bin/python -m myapp.cleanup",
		Replicas: 1,
		Timer:    &TimerSpec{OnCalendar: "*:0/15", Persistent: true},
	}

	wantTimer := `# myapp-cleanup.timer, generated by drydock

[Unit]
Description=myapp cleanup timer

[Timer]
OnCalendar=*:0/15
Persistent=true
Unit=myapp-cleanup.service

[Install]
WantedBy=timers.target
`
	if got := RenderTimer(testContext(), spec); got != wantTimer {
		t.Errorf("RenderTimer mismatch\ngot:\n%s\nwant:\n%s", got, wantTimer)
	}

	wantService := `# myapp-cleanup.service, generated by drydock

[Unit]
Description=myapp cleanup
After=network.target

[Service]
Type=oneshot
ExecStart=/opt/apps/myapp/current/.venv/bin/python -m myapp.cleanup
`
	if got := RenderService(testContext(), spec); got != wantService {
		t.Errorf("RenderService mismatch\ngot:\n%s\nwant:\n%s", got, wantService)
	}
}

func TestRenderBaseDropIn(t *testing.T) {
	t.Parallel()
	spec := ProcessSpec{Name: "web", Command: "gunicorn", Replicas: 1}

	want := `# myapp-web.service.d/10-drydock.conf, generated by drydock

[Service]
User=myapp
WorkingDirectory=/opt/apps/myapp/current
EnvironmentFile=/opt/apps/myapp/.env
Environment=PATH=/opt/apps/myapp/current/.venv/bin:/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin
Restart=on-failure
RestartSec=5s
StandardOutput=journal
StandardError=journal
`
	if got := RenderBaseDropIn(testContext(), spec); got != want {
		t.Errorf("RenderBaseDropIn mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}

	spec.Timer = &TimerSpec{OnBootSec: "5min"}
	if got := RenderBaseDropIn(testContext(), spec); strings.Contains(got, "Restart=") {
		t.Errorf("oneshot drop-in sets a restart policy:\n%s", got)
	}

	released := testContext()
	released.Release = "1.2.0"
	first := RenderBaseDropIn(released, ProcessSpec{Name: "web", Command: "gunicorn", Replicas: 1})
	if !strings.Contains(first, "Environment=DRYDOCK_RELEASE=1.2.0\n") {
		t.Errorf("release not exported:\n%s", first)
	}
	released.Release = "1.3.0"
	if RenderBaseDropIn(released, ProcessSpec{Name: "web", Command: "gunicorn", Replicas: 1}) == first {
		t.Error("a new release renders an identical drop-in")
	}
}

func TestExecStart(t *testing.T) {
	t.Parallel()
	python := testContext()
	binary := testContext()
	binary.Mode = ModeBinary

	tests := []struct {
		name    string
		context Context
		command string
		want    string
	}{
		{"absolute", python, "/usr/bin/env python", "/usr/bin/env python"},
		{"relative path", python, ".venv/bin/gunicorn app:app", "/opt/apps/myapp/current/.venv/bin/gunicorn app:app"},
		{"bare name", python, "gunicorn app:app", "gunicorn app:app"},
		{"binary app name", binary, "myapp serve --port 8000", "/opt/apps/myapp/current/myapp serve --port 8000"},
		{"binary alone", binary, "myapp", "/opt/apps/myapp/current/myapp"},
		{"binary other", binary, "sleep 10", "sleep 10"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := test.context.ExecStart(test.command); got != test.want {
				t.Errorf("ExecStart(%q) = %q, want %q", test.command, got, test.want)
			}
		})
	}
}

func TestRenderedUnitsPassValidation(t *testing.T) {
	t.Parallel()
	specs := []ProcessSpec{
		{Name: "web", Command: "gunicorn", Replicas: 2, Socket: true},
		{Name: "api", Command: "api", Replicas: 1, Listen: ":8080"},
		{Name: "cleanup", Command: "cleanup", Replicas: 1, Timer: &TimerSpec{OnCalendar: "daily", RandomizedDelaySec: "5m"}},
	}
	units, err := Compile(testContext(), specs)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, unit := range units {
		if err := ValidateINI(unit.Name, []byte(unit.Body)); err != nil {
			t.Errorf("generated %s is invalid: %v", unit.Name, err)
		}
	}
}
