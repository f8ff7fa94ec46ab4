// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drydock-dev/drydock/lib/clock"
	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/remote/remotetest"
	"github.com/drydock-dev/drydock/lib/secret"
	"github.com/drydock-dev/drydock/lib/secrets"
	"github.com/drydock-dev/drydock/lib/unit"
)

type mapSource map[string]string

func (m mapSource) Fetch(_ context.Context, name string) (*secret.Buffer, error) {
	value, ok := m[name]
	if !ok {
		return nil, secrets.ErrNotFound
	}
	return secret.NewFromBytes([]byte(value))
}

// fakeHost is an application host under a temp directory. Commands
// run in the local shell, except those needing root: install.sh and
// uninstall.sh are emulated by copying units into a fake systemd
// directory, and systemctl and journalctl are answered from state.
type fakeHost struct {
	t       *testing.T
	host    host.Host
	layout  host.Layout
	project string
	systemd string
	runner  *remotetest.Runner
	clock   *clock.FakeClock

	mu          sync.Mutex
	failing     map[string]bool
	installExit map[string]int
	installs    []string
	uninstalls  []string
	systemctl   []string
	journals    int
	// loaded maps the concrete units systemd knows about to their
	// active state.
	loaded map[string]string
}

func newFakeHost(t *testing.T, pumpClock bool) *fakeHost {
	t.Helper()
	target := host.Host{Address: "example.com", User: "deploy", Agent: true, AppsRoot: t.TempDir()}
	h := &fakeHost{
		t:           t,
		host:        target,
		layout:      target.Layout("myapp"),
		project:     t.TempDir(),
		systemd:     t.TempDir(),
		runner:      remotetest.NewRunner(),
		clock:       clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		failing:     make(map[string]bool),
		installExit: make(map[string]int),
		loaded:      make(map[string]string),
	}
	h.runner.Intercept = h.intercept
	if pumpClock {
		stop := make(chan struct{})
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
				if h.clock.PendingCount() > 0 {
					h.clock.Advance(time.Minute)
				} else {
					time.Sleep(time.Millisecond)
				}
			}
		}()
		t.Cleanup(func() { close(stop) })
	}
	if err := os.WriteFile(filepath.Join(h.project, ".env.prod"), []byte("SECRET_KEY=$app-secret\nDEBUG=false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return h
}

func scriptPath(command, name string) (string, bool) {
	if !strings.HasPrefix(command, "bash ") || !strings.HasSuffix(strings.Trim(command, "'"), "/"+name) {
		return "", false
	}
	return strings.Trim(strings.TrimPrefix(command, "bash "), "'"), true
}

func (h *fakeHost) currentVersion() string {
	target, err := os.Readlink(h.layout.CurrentLink())
	if err != nil {
		return ""
	}
	return filepath.Base(strings.TrimRight(target, "/"))
}

func (h *fakeHost) intercept(command string) (remotetest.Reply, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if script, ok := scriptPath(command, "uninstall.sh"); ok {
		h.uninstalls = append(h.uninstalls, filepath.Base(filepath.Dir(script)))
		clear(h.loaded)
		if err := os.RemoveAll(h.systemd); err != nil {
			return remotetest.Reply{ExitCode: 1, Stderr: err.Error()}, true
		}
		return remotetest.Reply{}, true
	}
	if script, ok := scriptPath(command, "install.sh"); ok {
		return h.install(filepath.Dir(script)), true
	}

	switch {
	case strings.HasPrefix(command, "systemctl is-active "):
		failed := h.failing[h.currentVersion()]
		var lines []string
		for _, name := range strings.Fields(strings.TrimPrefix(command, "systemctl is-active ")) {
			state, known := h.loaded[strings.Trim(name, "'")]
			switch {
			case failed:
				lines = append(lines, "failed")
			case known:
				lines = append(lines, state)
			default:
				lines = append(lines, "active")
			}
		}
		reply := remotetest.Reply{Stdout: strings.Join(lines, "\n") + "\n"}
		if failed {
			reply.ExitCode = 3
		}
		return reply, true
	case strings.HasPrefix(command, "systemctl list-units "):
		return remotetest.Reply{Stdout: h.listUnits(command)}, true
	case strings.HasPrefix(command, "systemctl "):
		h.systemctl = append(h.systemctl, command)
		h.track(command)
		return remotetest.Reply{}, true
	case strings.HasPrefix(command, "journalctl "):
		h.journals++
		return remotetest.Reply{Stdout: "myapp[42]: boom\n"}, true
	}
	return remotetest.Reply{}, false
}

// unitArgs splits a systemctl command into its verb, its flags and the
// unit names it names.
func unitArgs(command string) (verb string, flags, units []string) {
	fields := strings.Fields(strings.TrimPrefix(command, "systemctl "))
	if len(fields) == 0 {
		return "", nil, nil
	}
	for _, field := range fields[1:] {
		if strings.HasPrefix(field, "-") {
			flags = append(flags, field)
		} else {
			units = append(units, strings.Trim(field, "'"))
		}
	}
	return fields[0], flags, units
}

// track follows the state changes of a systemctl command. Called with
// mu held.
func (h *fakeHost) track(command string) {
	verb, flags, units := unitArgs(command)
	now := slices.Contains(flags, "--now")
	for _, name := range units {
		switch {
		case verb == "disable" && now:
			delete(h.loaded, name)
		case verb == "stop":
			h.loaded[name] = "inactive"
		case verb == "start" || verb == "restart" || (verb == "enable" && now):
			h.loaded[name] = "active"
		case verb == "enable":
			if _, ok := h.loaded[name]; !ok {
				h.loaded[name] = "inactive"
			}
		}
	}
}

// listUnits answers systemctl list-units in its --plain --no-legend
// form. Called with mu held.
func (h *fakeHost) listUnits(command string) string {
	_, _, patterns := unitArgs(command)
	var lines []string
	for name, state := range h.loaded {
		for _, pattern := range patterns {
			if matched, _ := path.Match(pattern, name); matched {
				lines = append(lines, fmt.Sprintf("%s loaded %s running %s", name, state, name))
				break
			}
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}

// liveUnits lists the loaded units, sorted.
func (h *fakeHost) liveUnits() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.loaded))
	for name := range h.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *fakeHost) install(releaseDir string) remotetest.Reply {
	version := filepath.Base(releaseDir)
	if code := h.installExit[version]; code != 0 {
		return remotetest.Reply{ExitCode: code, Stderr: "install.sh: systemd rejected the units"}
	}
	if err := os.RemoveAll(h.systemd); err != nil {
		return remotetest.Reply{ExitCode: 1, Stderr: err.Error()}
	}
	if err := os.CopyFS(h.systemd, os.DirFS(filepath.Join(releaseDir, "units"))); err != nil {
		return remotetest.Reply{ExitCode: 1, Stderr: err.Error()}
	}
	if _, err := os.Stat(filepath.Join(releaseDir, ".env")); err == nil {
		if err := os.Rename(filepath.Join(releaseDir, ".env"), h.layout.EnvFile()); err != nil {
			return remotetest.Reply{ExitCode: 1, Stderr: err.Error()}
		}
	}
	h.installs = append(h.installs, version)
	return remotetest.Reply{}
}

// unitSet returns the installed unit files and their contents.
func (h *fakeHost) unitSet() map[string]string {
	h.t.Helper()
	units := make(map[string]string)
	err := filepath.WalkDir(h.systemd, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		relative, _ := filepath.Rel(h.systemd, path)
		units[relative] = string(content)
		return nil
	})
	if err != nil {
		h.t.Fatal(err)
	}
	return units
}

func unitNames(units map[string]string) []string {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *fakeHost) systemctlCalls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.systemctl...)
}

var webProcess = unit.ProcessSpec{Name: "web", Command: "myapp serve", Replicas: 2}

func (h *fakeHost) plan(version string, processes ...unit.ProcessSpec) Plan {
	if len(processes) == 0 {
		processes = []unit.ProcessSpec{webProcess}
	}
	return Plan{
		App:          "myapp",
		Version:      version,
		Mode:         unit.ModeBinary,
		BuildCommand: fmt.Sprintf("mkdir -p dist && printf 'myapp %s' > dist/myapp", version),
		BuildDir:     h.project,
		DistFile:     filepath.Join(h.project, "dist", "myapp"),
		EnvFile:      filepath.Join(h.project, ".env.prod"),
		Processes:    processes,
	}
}

func (h *fakeHost) pipeline(plan Plan, observer Observer) *Pipeline {
	return &Pipeline{
		Plan:     plan,
		Host:     h.host,
		Connect:  func(context.Context) (remote.Runner, error) { return h.runner, nil },
		Local:    &remote.Local{Stdout: io.Discard, Stderr: io.Discard},
		Secrets:  mapSource{"app-secret": "s3cr3t value"},
		Clock:    h.clock,
		Observer: observer,
	}
}

func (h *fakeHost) deploy(plan Plan) Result {
	h.t.Helper()
	return h.pipeline(plan, nil).Run(context.Background())
}

func (h *fakeHost) mustDeploy(plan Plan) Result {
	h.t.Helper()
	result := h.deploy(plan)
	if result.Err != nil || result.Outcome != OutcomeSuccess {
		h.t.Fatalf("deploy %s: outcome %s, error %v", plan.Version, result.Outcome, result.Err)
	}
	return result
}

func (h *fakeHost) versions() []string {
	h.t.Helper()
	entries, err := os.ReadDir(h.layout.VersionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		h.t.Fatal(err)
	}
	var versions []string
	for _, entry := range entries {
		if version, ok := h.layout.VersionFromBundle(entry.Name()); ok {
			versions = append(versions, version)
		}
	}
	sort.Strings(versions)
	return versions
}

// recorder is an Observer that keeps every notification.
type recorder struct {
	mu       sync.Mutex
	states   []State
	started  []Stage
	finished []Result
}

func (r *recorder) StateChanged(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

func (r *recorder) StageStarted(stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, stage)
}

func (r *recorder) StageFinished(Stage, time.Duration, error) {}

func (r *recorder) Finished(result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, result)
}
