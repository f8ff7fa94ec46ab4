// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"fmt"
	"path"
	"strings"
)

// Mode is how the application artifact is installed on the host.
type Mode string

const (
	// ModePython installs a wheel or sdist into a uv-managed .venv
	// inside the release directory.
	ModePython Mode = "python"
	// ModeBinary installs a self-contained executable named after the
	// application into the release directory.
	ModeBinary Mode = "binary"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModePython || m == ModeBinary }

// BaseDropInName is the drop-in every compiled service receives.
// Operator drop-ins may not use this name.
const BaseDropInName = "10-drydock.conf"

const systemPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Context carries the per-application values rendering needs.
type Context struct {
	App    string
	User   string
	AppDir string
	Mode   Mode

	// Webserver makes sockets group-accessible to the app user's group,
	// which the install script adds the reverse proxy user to.
	Webserver bool

	// DropInDir is the operator drop-in directory. Empty disables
	// discovery.
	DropInDir string

	// Release, when set, is exported to every service as
	// DRYDOCK_RELEASE. Because it lands in the base drop-in, a new
	// version changes every process's digest and restarts it.
	Release string
}

// CurrentDir is the symlink to the active release on the host.
func (c Context) CurrentDir() string { return path.Join(c.AppDir, "current") }

// EnvFile is the environment file referenced by every service.
func (c Context) EnvFile() string { return path.Join(c.AppDir, ".env") }

// SocketPath is the default unix socket for a socket-activated
// process. Template sockets carry the instance number.
func (c Context) SocketPath(spec ProcessSpec) string {
	if spec.Template() {
		return fmt.Sprintf("/run/%s/%s-%%i.sock", c.App, spec.Name)
	}
	return fmt.Sprintf("/run/%s/%s.sock", c.App, spec.Name)
}

// ServiceName returns the service unit file name for spec.
func (c Context) ServiceName(spec ProcessSpec) string {
	return unitName(c.App, spec.Name, spec.Template(), "service")
}

// SocketName returns the socket unit file name for spec.
func (c Context) SocketName(spec ProcessSpec) string {
	return unitName(c.App, spec.Name, spec.Template(), "socket")
}

// TimerName returns the timer unit file name for spec.
func (c Context) TimerName(spec ProcessSpec) string {
	return unitName(c.App, spec.Name, false, "timer")
}

func unitName(app, process string, template bool, suffix string) string {
	if template {
		return app + "-" + process + "@." + suffix
	}
	return app + "-" + process + "." + suffix
}

func (c Context) validate() error {
	var issues []string
	if c.App == "" {
		issues = append(issues, "app is required")
	} else if !processNamePattern.MatchString(c.App) {
		issues = append(issues, "app must match [a-z0-9][a-z0-9_-]*")
	}
	if c.User == "" {
		issues = append(issues, "user is required")
	}
	if !path.IsAbs(c.AppDir) {
		issues = append(issues, fmt.Sprintf("app dir must be absolute, got %q", c.AppDir))
	}
	if !c.Mode.Valid() {
		issues = append(issues, fmt.Sprintf("unknown installation mode %q", c.Mode))
	}
	if len(issues) > 0 {
		return fmt.Errorf("invalid unit context: %s", strings.Join(issues, "; "))
	}
	return nil
}

// ExecStart resolves command for the host. Absolute executables are
// left alone, relative paths are anchored at the current release, and
// in binary mode a bare application name refers to the installed
// binary. Anything else is left for systemd's executable search.
func (c Context) ExecStart(command string) string {
	command = strings.TrimSpace(command)
	executable, rest, _ := strings.Cut(command, " ")
	switch {
	case strings.HasPrefix(executable, "/"):
		return command
	case strings.Contains(executable, "/"),
		c.Mode == ModeBinary && executable == c.App:
		resolved := path.Join(c.CurrentDir(), executable)
		if rest == "" {
			return resolved
		}
		return resolved + " " + rest
	}
	return command
}

func (c Context) searchPath() string {
	if c.Mode == ModePython {
		return path.Join(c.CurrentDir(), ".venv", "bin") + ":" + systemPath
	}
	return c.CurrentDir() + ":" + systemPath
}

type body struct {
	builder strings.Builder
}

func (b *body) header(name string) {
	fmt.Fprintf(&b.builder, "# %s, generated by drydock\n", name)
}

func (b *body) section(name string) {
	if b.builder.Len() > 0 && !strings.HasSuffix(b.builder.String(), "\n\n") {
		b.builder.WriteString("\n")
	}
	fmt.Fprintf(&b.builder, "[%s]\n", name)
}

func (b *body) set(key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(&b.builder, "%s=%s\n", key, value)
}

func (b *body) String() string { return b.builder.String() }

// RenderService renders the service unit for spec.
func RenderService(c Context, spec ProcessSpec) string {
	var b body
	b.header(c.ServiceName(spec))

	description := c.App + " " + spec.Name
	if spec.Template() {
		description += " %i"
	}
	b.section("Unit")
	b.set("Description", description)
	b.set("After", "network.target")
	if spec.Socket {
		socket := c.SocketName(spec)
		if spec.Template() {
			socket = strings.Replace(socket, "@.", "@%i.", 1)
		}
		b.set("Requires", socket)
		b.set("After", socket)
	}

	b.section("Service")
	if spec.Timer != nil {
		b.set("Type", "oneshot")
	} else {
		b.set("Type", "simple")
	}
	b.set("ExecStart", c.ExecStart(spec.Command))

	// Socket and timer services are started by their trigger unit.
	if spec.Timer == nil && !spec.Socket {
		b.section("Install")
		b.set("WantedBy", "multi-user.target")
	}
	return b.String()
}

// RenderSocket renders the socket unit for a socket-activated spec.
func RenderSocket(c Context, spec ProcessSpec) string {
	var b body
	b.header(c.SocketName(spec))

	service := c.ServiceName(spec)
	description := c.App + " " + spec.Name + " socket"
	if spec.Template() {
		service = strings.Replace(service, "@.", "@%i.", 1)
		description += " %i"
	}
	listen := spec.Listen
	if listen == "" {
		listen = c.SocketPath(spec)
	}

	b.section("Unit")
	b.set("Description", description)
	b.set("PartOf", service)

	b.section("Socket")
	b.set("ListenStream", listen)
	b.set("Accept", "no")
	b.set("SocketUser", c.User)
	if c.Webserver {
		b.set("SocketGroup", c.User)
		b.set("SocketMode", "0660")
	} else {
		b.set("SocketMode", "0600")
	}

	b.section("Install")
	b.set("WantedBy", "sockets.target")
	return b.String()
}

// RenderTimer renders the timer unit for a scheduled spec.
func RenderTimer(c Context, spec ProcessSpec) string {
	var b body
	b.header(c.TimerName(spec))

	b.section("Unit")
	b.set("Description", c.App+" "+spec.Name+" timer")

	timer := spec.Timer
	b.section("Timer")
	b.set("OnCalendar", timer.OnCalendar)
	b.set("OnBootSec", timer.OnBootSec)
	b.set("OnUnitActiveSec", timer.OnUnitActiveSec)
	if timer.Persistent {
		b.set("Persistent", "true")
	}
	b.set("RandomizedDelaySec", timer.RandomizedDelaySec)
	b.set("Unit", c.ServiceName(spec))

	b.section("Install")
	b.set("WantedBy", "timers.target")
	return b.String()
}

// RenderBaseDropIn renders 10-drydock.conf for spec's service.
func RenderBaseDropIn(c Context, spec ProcessSpec) string {
	var b body
	b.header(c.ServiceName(spec) + ".d/" + BaseDropInName)

	b.section("Service")
	b.set("User", c.User)
	b.set("WorkingDirectory", c.CurrentDir())
	b.set("EnvironmentFile", c.EnvFile())
	b.set("Environment", "PATH="+c.searchPath())
	if c.Release != "" {
		b.set("Environment", "DRYDOCK_RELEASE="+c.Release)
	}
	if spec.Timer == nil {
		b.set("Restart", "on-failure")
		b.set("RestartSec", "5s")
	}
	b.set("StandardOutput", "journal")
	b.set("StandardError", "journal")
	return b.String()
}
