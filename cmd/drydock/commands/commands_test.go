// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
	"github.com/drydock-dev/drydock/lib/clock"
	"github.com/drydock-dev/drydock/lib/config"
	"github.com/drydock-dev/drydock/lib/deploy"
	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/remote/remotetest"
	"github.com/drydock-dev/drydock/lib/sealed"
	"github.com/drydock-dev/drydock/lib/version"
)

const baseConfig = `
app: myapp
version: 1.2.0
distfile: dist/myapp.tar.gz
apps_root: %s
host: {address: example.com, user: deploy, agent: true}
processes:
  web: {command: "bin/web", replicas: 2}
  worker: {command: "bin/worker", replicas: 1}
audit: {path: %s}
`

// testEnv is one drydock invocation against a host simulated in a
// temporary directory.
type testEnv struct {
	t        *testing.T
	dir      string
	layout   host.Layout
	runner   *remotetest.Runner
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	stdin    string
	connects int

	// units maps the units the simulated systemd has loaded to their
	// active state.
	units map[string]string

	configPath string
	auditPath  string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "apps")
	env := &testEnv{
		t:          t,
		dir:        dir,
		layout:     host.Host{AppsRoot: root}.Layout("myapp"),
		runner:     remotetest.NewRunner(),
		configPath: filepath.Join(dir, "drydock.yaml"),
		auditPath:  filepath.Join(dir, "audit.db"),
		units:      make(map[string]string),
	}
	env.runner.Intercept = env.systemd
	content := fmt.Sprintf(baseConfig, root, env.auditPath) + extra
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(env.layout.VersionsDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	return env
}

// run executes one command line with a fresh command tree.
func (e *testEnv) run(args ...string) error {
	e.stdout.Reset()
	e.stderr.Reset()
	a := &app{
		ctx:        context.Background(),
		configPath: e.configPath,
		stdin:      strings.NewReader(e.stdin),
		stdout:     &e.stdout,
		stderr:     &e.stderr,
		clock:      clock.Real(),
		lockWait:   200 * time.Millisecond,
		connect: func(context.Context, *config.Project, *slog.Logger) (remote.Runner, error) {
			e.connects++
			return e.runner, nil
		},
		getenv: func(string) string { return "" },
		log:    slog.New(slog.DiscardHandler),
	}
	return newRoot(a).Execute(args)
}

// systemd answers systemctl and journalctl from e.units. Other
// commands run in the local shell.
func (e *testEnv) systemd(command string) (remotetest.Reply, bool) {
	fields := strings.Fields(command)
	if len(fields) < 2 {
		return remotetest.Reply{}, false
	}
	var names []string
	for _, field := range fields[2:] {
		if !strings.HasPrefix(field, "-") {
			names = append(names, strings.Trim(field, "'"))
		}
	}
	switch {
	case fields[0] == "journalctl":
		return remotetest.Reply{Stdout: "myapp[42]: listening\n"}, true
	case fields[0] != "systemctl":
		return remotetest.Reply{}, false
	}

	var stdout strings.Builder
	switch fields[1] {
	case "list-units":
		for _, name := range slices.Sorted(maps.Keys(e.units)) {
			for _, pattern := range names {
				if matched, _ := path.Match(pattern, name); matched {
					fmt.Fprintf(&stdout, "%s loaded %s running %s\n", name, e.units[name], name)
				}
			}
		}
	case "is-active":
		for _, name := range names {
			state, ok := e.units[name]
			if !ok {
				state = "inactive"
			}
			fmt.Fprintln(&stdout, state)
		}
	case "start", "restart":
		for _, name := range names {
			e.units[name] = "active"
		}
	case "stop":
		for _, name := range names {
			e.units[name] = "inactive"
		}
	case "enable":
		for _, name := range names {
			e.units[name] = "active"
		}
	case "disable":
		for _, name := range names {
			delete(e.units, name)
		}
	}
	return remotetest.Reply{Stdout: stdout.String()}, true
}

// systemctl lists the systemctl commands run, without the queries.
func (e *testEnv) systemctl() []string {
	var commands []string
	for _, command := range e.runner.Commands() {
		if strings.HasPrefix(command, "systemctl ") && !strings.HasPrefix(command, "systemctl list-units") && !strings.HasPrefix(command, "systemctl is-active") {
			commands = append(commands, command)
		}
	}
	return commands
}

// addReleases creates archives and release directories, oldest first,
// and points current at the last one.
func (e *testEnv) addReleases(versions ...string) {
	e.t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, version := range versions {
		archive := e.layout.BundlePath(version)
		if err := os.WriteFile(archive, []byte("bundle "+version), 0o644); err != nil {
			e.t.Fatal(err)
		}
		modified := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(archive, modified, modified); err != nil {
			e.t.Fatal(err)
		}
		if err := os.MkdirAll(e.layout.ReleaseDir(version), 0o755); err != nil {
			e.t.Fatal(err)
		}
	}
	current := versions[len(versions)-1]
	if err := os.Symlink(".versions/"+current+"/", e.layout.CurrentLink()); err != nil {
		e.t.Fatal(err)
	}
}

func (e *testEnv) archives() []string {
	e.t.Helper()
	entries, err := os.ReadDir(e.layout.VersionsDir())
	if err != nil {
		e.t.Fatal(err)
	}
	var versions []string
	for _, entry := range entries {
		if version, ok := e.layout.VersionFromBundle(entry.Name()); ok {
			versions = append(versions, version)
		}
	}
	slices.Sort(versions)
	return versions
}

func (e *testEnv) auditRecords() []audit.Record {
	e.t.Helper()
	log, err := audit.Open(e.auditPath, clock.Real(), nil)
	if err != nil {
		e.t.Fatal(err)
	}
	defer log.Close()
	records, err := log.List(context.Background(), "myapp", 0)
	if err != nil {
		e.t.Fatal(err)
	}
	return records
}

func TestUnitsNames(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.run("units", "--names"); err != nil {
		t.Fatalf("units --names: %v", err)
	}
	names := strings.Fields(env.stdout.String())
	for _, want := range []string{"myapp-web@.service", "myapp-worker.service"} {
		if !slices.Contains(names, want) {
			t.Errorf("names %v missing %s", names, want)
		}
	}
	if env.connects != 0 {
		t.Errorf("units connected to the host %d time(s)", env.connects)
	}
}

func TestUnitsBodies(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.run("units"); err != nil {
		t.Fatalf("units: %v", err)
	}
	output := env.stdout.String()
	for _, want := range []string{"# myapp-web@.service", "[Service]", "ExecStart="} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("output has escape sequences without a terminal:\n%q", output)
	}
}

func TestReleasesMarksCurrent(t *testing.T) {
	env := newTestEnv(t, "")
	env.addReleases("1.0.0", "1.1.0")

	if err := env.run("releases"); err != nil {
		t.Fatalf("releases: %v", err)
	}
	output := env.stdout.String()
	newer, older := strings.Index(output, "1.1.0"), strings.Index(output, "1.0.0")
	if newer < 0 || older < 0 || newer > older {
		t.Fatalf("releases not listed newest first:\n%s", output)
	}
	var currentLine string
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "current") {
			currentLine = line
		}
	}
	if !strings.Contains(currentLine, "1.1.0") {
		t.Errorf("current marker on %q, want the 1.1.0 row", currentLine)
	}
}

func TestReleasesEmptyHost(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.run("releases"); err != nil {
		t.Fatalf("releases: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "no releases of myapp") {
		t.Errorf("output = %q", env.stdout.String())
	}
}

func TestPruneKeepsNewestAndRecords(t *testing.T) {
	env := newTestEnv(t, "")
	env.addReleases("1.0.0", "1.1.0", "1.2.0", "1.3.0")

	if err := env.run("prune", "--keep", "2"); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if got := env.archives(); !slices.Equal(got, []string{"1.2.0", "1.3.0"}) {
		t.Errorf("archives after prune = %v", got)
	}
	if _, err := os.Stat(env.layout.ReleaseDir("1.0.0")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("release directory of 1.0.0 still present: %v", err)
	}

	records := env.auditRecords()
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	record := records[0]
	if record.Operation != "prune" || record.Outcome != "success" || record.Host != "deploy@example.com:22" {
		t.Errorf("record = %+v", record)
	}

	if err := env.run("audit", "--json"); err != nil {
		t.Fatalf("audit --json: %v", err)
	}
	if !strings.Contains(env.stdout.String(), `"Operation":"prune"`) {
		t.Errorf("audit --json = %s", env.stdout.String())
	}
}

func TestPruneRejectsNegativeKeep(t *testing.T) {
	env := newTestEnv(t, "")
	err := env.run("prune", "--keep=-1")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
		t.Fatalf("error = %v, want a validation error", err)
	}
	if env.connects != 0 {
		t.Error("connected despite invalid flags")
	}
}

func TestAuditDisabled(t *testing.T) {
	env := newTestEnv(t, "")
	content, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	disabled := strings.Replace(string(content), "audit: {path: "+env.auditPath+"}", "audit: {path: \"off\"}", 1)
	if err := os.WriteFile(env.configPath, []byte(disabled), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := env.run("audit"); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "disabled") {
		t.Errorf("output = %q", env.stdout.String())
	}
}

func TestRollbackCleanDeclined(t *testing.T) {
	env := newTestEnv(t, "")
	env.addReleases("1.0.0", "1.1.0")
	env.stdin = "n\n"

	err := env.run("rollback", "--clean")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !strings.Contains(env.stderr.String(), "[y/N]") {
		t.Errorf("no confirmation prompt on stderr: %q", env.stderr.String())
	}
	if got := env.archives(); !slices.Equal(got, []string{"1.0.0", "1.1.0"}) {
		t.Errorf("archives after declined rollback = %v", got)
	}
	for _, command := range env.runner.Commands() {
		if strings.Contains(command, "rm -rf") {
			t.Errorf("declined rollback ran %q", command)
		}
	}
}

func TestScaleValidation(t *testing.T) {
	env := newTestEnv(t, "")
	tests := []struct {
		name string
		args []string
		hint string
	}{
		{"not a number", []string{"scale", "web", "many"}, "remove it from the configuration"},
		{"zero", []string{"scale", "web", "0"}, "remove it from the configuration"},
		{"reshape", []string{"scale", "worker", "3"}, "Set processes.worker.replicas to 3"},
		{"unknown process", []string{"scale", "scheduler", "2"}, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := env.run(test.args...)
			var toolErr *cli.ToolError
			if !errors.As(err, &toolErr) {
				t.Fatalf("error = %v, want a ToolError", err)
			}
			if toolErr.ExitCode() != 1 {
				t.Errorf("exit code = %d, want 1", toolErr.ExitCode())
			}
			if test.hint != "" && !strings.Contains(toolErr.Error(), test.hint) {
				t.Errorf("error %q lacks hint %q", toolErr.Error(), test.hint)
			}
		})
	}
	if env.connects != 0 {
		t.Errorf("scale connected %d time(s) for invalid requests", env.connects)
	}
}

func TestScaleNoop(t *testing.T) {
	env := newTestEnv(t, "")
	env.units["myapp-web@1.service"] = "active"
	env.units["myapp-web@2.service"] = "active"
	if err := env.run("scale", "web", "2"); err != nil {
		t.Fatalf("scale: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "already runs 2") {
		t.Errorf("output = %q", env.stdout.String())
	}
	if calls := env.systemctl(); len(calls) != 0 {
		t.Errorf("no-op scale ran %q", calls)
	}
	if records := env.auditRecords(); len(records) != 0 {
		t.Errorf("no-op scale recorded %+v", records)
	}
}

func TestScaleFromRunningInstances(t *testing.T) {
	env := newTestEnv(t, "verify: {interval: 1ms}\n")
	for _, name := range []string{"myapp-web@1.service", "myapp-web@2.service", "myapp-web@3.service", "myapp-web@4.service"} {
		env.units[name] = "active"
	}

	if err := env.run("scale", "web", "3"); err != nil {
		t.Fatalf("scale: %v", err)
	}
	want := []string{"systemctl disable --quiet --now myapp-web@4.service"}
	if got := env.systemctl(); !slices.Equal(got, want) {
		t.Errorf("systemctl = %q, want %q", got, want)
	}
	if !strings.Contains(env.stdout.String(), "scaled web from 4 to 3") {
		t.Errorf("output = %q", env.stdout.String())
	}
	records := env.auditRecords()
	if len(records) != 1 || records[0].Operation != "scale" || records[0].Outcome != "success" {
		t.Fatalf("records = %+v", records)
	}
}

func TestStatusCommand(t *testing.T) {
	env := newTestEnv(t, "")
	env.addReleases("1.1.0")
	env.units["myapp-web@1.service"] = "active"
	env.units["myapp-web@2.service"] = "failed"
	env.units["myapp-worker.service"] = "active"

	if err := env.run("status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	output := env.stdout.String()
	for _, want := range []string{"active release 1.1.0", "local version 1.2.0", "1/2 active", "worker"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestControlCommands(t *testing.T) {
	env := newTestEnv(t, "verify: {interval: 1ms}\n")
	env.addReleases("1.2.0")

	if err := env.run("stop", "worker"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := env.run("restart"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	want := []string{
		"systemctl stop myapp-worker.service",
		"systemctl restart myapp-web@1.service myapp-web@2.service myapp-worker.service",
	}
	if got := env.systemctl(); !slices.Equal(got, want) {
		t.Errorf("systemctl = %q, want %q", got, want)
	}
	if !strings.Contains(env.stdout.String(), "restarted myapp-web@1.service") {
		t.Errorf("output = %q", env.stdout.String())
	}

	records := env.auditRecords()
	operations := make([]string, len(records))
	for i, record := range records {
		operations[i] = record.Operation
	}
	slices.Sort(operations)
	if !slices.Equal(operations, []string{"restart", "stop"}) {
		t.Errorf("audit operations = %v", operations)
	}

	err := env.run("start", "scheduler")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.ExitCode() != 1 {
		t.Fatalf("unknown process: error = %v, want exit 1", err)
	}
	if !strings.Contains(err.Error(), "available: web, worker") {
		t.Errorf("error %q does not list the processes", err)
	}
}

func TestLogsCommand(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.run("logs", "web", "-n", "20", "--level", "err", "-g", "timeout"); err != nil {
		t.Fatalf("logs: %v", err)
	}
	want := "journalctl --no-pager -u myapp-web@1.service -u myapp-web@2.service -n 20 -p err --case-sensitive=false -g timeout"
	if !slices.Contains(env.runner.Commands(), want) {
		t.Errorf("commands = %q, want %q", env.runner.Commands(), want)
	}

	err := env.run("logs", "--level", "loud")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.ExitCode() != 1 {
		t.Errorf("unknown level: error = %v, want exit 1", err)
	}
}

func TestDeployBuildFailure(t *testing.T) {
	env := newTestEnv(t, "build_command: exit 3\n")

	err := env.run("deploy")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("error = %v, want exit status 2", err)
	}
	if env.connects != 0 {
		t.Errorf("deploy connected after a failed build")
	}
	if !strings.Contains(env.stdout.String(), "deploy of myapp 1.2.0 failed (failed-before-install)") {
		t.Errorf("summary = %s", env.stdout.String())
	}

	records := env.auditRecords()
	if len(records) != 1 || records[0].Operation != "deploy" || records[0].Outcome != string(deploy.OutcomeFailedBeforeInstall) {
		t.Fatalf("records = %+v", records)
	}
	if records[0].Details["stage"] != string(deploy.StageBuild) {
		t.Errorf("details = %v", records[0].Details)
	}
}

func TestDeployVersionFlag(t *testing.T) {
	env := newTestEnv(t, "build_command: exit 3\n")
	if err := env.run("deploy", "--version", "2.0.0"); err == nil {
		t.Fatal("deploy succeeded with a failing build")
	}
	records := env.auditRecords()
	if len(records) != 1 || records[0].Version != "2.0.0" {
		t.Errorf("records = %+v, want version 2.0.0", records)
	}
}

func TestLockHeldElsewhere(t *testing.T) {
	redisServer := miniredis.RunT(t)
	env := newTestEnv(t, "lock: {redis_url: \"redis://"+redisServer.Addr()+"\"}\n")
	env.addReleases("1.0.0", "1.1.0", "1.2.0")
	if err := redisServer.Set("drydock:lock:myapp", "alice@laptop deploy#7b0c"); err != nil {
		t.Fatal(err)
	}

	err := env.run("prune", "--keep", "1")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryConflict {
		t.Fatalf("error = %v, want a conflict", err)
	}
	if !strings.Contains(err.Error(), "alice@laptop deploy") {
		t.Errorf("error %q does not name the holder", err)
	}
	if got := env.archives(); len(got) != 3 {
		t.Errorf("prune ran without the lock: archives %v", got)
	}

	redisServer.Del("drydock:lock:myapp")
	if err := env.run("prune", "--keep", "1"); err != nil {
		t.Fatalf("prune with a free lock: %v", err)
	}
	if got := env.archives(); !slices.Equal(got, []string{"1.2.0"}) {
		t.Errorf("archives = %v", got)
	}
	if redisServer.Exists("drydock:lock:myapp") {
		t.Error("lock still held after the command finished")
	}
}

func TestSealRoundTrip(t *testing.T) {
	env := newTestEnv(t, "")
	identity := filepath.Join(env.dir, "identity.txt")
	if err := env.run("seal", "--keygen", "-o", identity); err != nil {
		t.Fatalf("seal --keygen: %v", err)
	}
	info, err := os.Stat(identity)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("identity mode = %v, want 0600", info.Mode().Perm())
	}
	lines := strings.Split(strings.TrimSpace(env.stdout.String()), "\n")
	recipient := lines[len(lines)-1]
	if !strings.HasPrefix(recipient, "age1") {
		t.Fatalf("last output line %q is not a recipient", recipient)
	}

	if err := env.run("seal", "--keygen", "-o", identity); err == nil {
		t.Error("keygen overwrote an existing identity")
	}

	plaintext := filepath.Join(env.dir, "secrets.env")
	if err := os.WriteFile(plaintext, []byte("DATABASE_PASSWORD=hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := env.run("seal", "-r", recipient, plaintext); err != nil {
		t.Fatalf("seal: %v", err)
	}
	decrypted, err := sealed.DecryptFile(plaintext+".age", identity)
	if err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	defer decrypted.Close()
	if decrypted.String() != "DATABASE_PASSWORD=hunter2\n" {
		t.Errorf("decrypted = %q", decrypted.String())
	}
}

func TestSealNeedsRecipient(t *testing.T) {
	env := newTestEnv(t, "")
	err := env.run("seal", "secrets.env")
	if err == nil || !strings.Contains(err.Error(), "--keygen") {
		t.Errorf("error = %v, want a hint pointing at --keygen", err)
	}
}

func TestMissingConfig(t *testing.T) {
	env := newTestEnv(t, "")
	env.configPath = filepath.Join(env.dir, "absent.yaml")
	err := env.run("releases")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.ExitCode() != 1 {
		t.Fatalf("error = %v, want a configuration failure", err)
	}
}

func TestGlobalFlagsKeepConfigPath(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.run("-v", "--no-color", "releases"); err != nil {
		t.Fatalf("releases with global flags: %v", err)
	}

	configured := env.configPath
	env.configPath = filepath.Join(env.dir, "absent.yaml")
	if err := env.run("--config", configured, "releases"); err != nil {
		t.Fatalf("releases --config %s: %v", configured, err)
	}
}

func TestCommandError(t *testing.T) {
	stageErr := &deploy.StageError{
		Stage: deploy.StageUpload,
		Kind:  deploy.KindUpload,
		Err:   errors.New("connection reset"),
		Hints: []string{"Check the network."},
	}
	tests := []struct {
		name     string
		err      error
		code     int
		category cli.ErrorCategory
	}{
		{"stage", stageErr, 3, cli.CategoryTransient},
		{"connection", &remote.ConnectionError{Host: "example.com", Op: "dial", Err: errors.New("refused")}, 7, cli.CategoryTransient},
		{"configuration", &deploy.ConfigurationError{Err: errors.New("app is required")}, 1, cli.CategoryValidation},
		{"other", errors.New("boom"), 1, cli.CategoryInternal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := commandError(test.err)
			var toolErr *cli.ToolError
			if !errors.As(err, &toolErr) {
				t.Fatalf("commandError(%v) = %T", test.err, err)
			}
			if toolErr.ExitCode() != test.code || toolErr.Category != test.category {
				t.Errorf("code %d category %s, want %d %s", toolErr.ExitCode(), toolErr.Category, test.code, test.category)
			}
		})
	}

	if err := commandError(stageErr); !strings.Contains(err.Error(), "Check the network.") {
		t.Errorf("stage hints dropped: %q", err)
	}
	if commandError(nil) != nil {
		t.Error("commandError(nil) != nil")
	}
	exit := &cli.ExitError{Code: 5}
	if err := commandError(exit); err != exit {
		t.Errorf("exit error rewrapped as %v", err)
	}
	var canceled *cli.ExitError
	if err := commandError(fmt.Errorf("waiting: %w", context.Canceled)); !errors.As(err, &canceled) || canceled.Code != 130 {
		t.Errorf("canceled = %v, want exit 130", err)
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.run("version", "--short"); err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(env.stdout.String()) != version.Version {
		t.Errorf("version --short = %q, want %q", env.stdout.String(), version.Version)
	}
}
