// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultAppsRoot is where applications live when the configuration
// does not say otherwise.
const DefaultAppsRoot = "/opt/apps"

// AuthMethod names how a session authenticates.
type AuthMethod string

const (
	AuthKey      AuthMethod = "key"
	AuthPassword AuthMethod = "password"
	AuthAgent    AuthMethod = "agent"
)

// Host is a deploy target.
type Host struct {
	Address string
	Port    int
	User    string

	// KeyFile, PasswordEnv and Agent are mutually exclusive.
	KeyFile     string
	PasswordEnv string
	Agent       bool

	// KnownHosts is the known_hosts file used for host key checks.
	// Empty means ~/.ssh/known_hosts.
	KnownHosts            string
	InsecureIgnoreHostKey bool

	AppsRoot string

	// EnvFile is the local dotenv file whose contents become the
	// release's .env after secret resolution.
	EnvFile string
}

// Auth returns the single configured authentication method. Call
// Validate first; Auth on an invalid Host returns an empty method.
func (h Host) Auth() AuthMethod {
	var methods []AuthMethod
	if h.KeyFile != "" {
		methods = append(methods, AuthKey)
	}
	if h.PasswordEnv != "" {
		methods = append(methods, AuthPassword)
	}
	if h.Agent {
		methods = append(methods, AuthAgent)
	}
	if len(methods) != 1 {
		return ""
	}
	return methods[0]
}

// Validate checks the descriptor. All problems are reported together.
func (h Host) Validate() error {
	var errs []error
	if h.Address == "" {
		errs = append(errs, errors.New("host address is required"))
	}
	if h.User == "" {
		errs = append(errs, errors.New("host user is required"))
	}
	if h.Port < 0 || h.Port > 65535 {
		errs = append(errs, fmt.Errorf("host port %d out of range", h.Port))
	}

	count := 0
	for _, set := range []bool{h.KeyFile != "", h.PasswordEnv != "", h.Agent} {
		if set {
			count++
		}
	}
	switch count {
	case 0:
		errs = append(errs, errors.New("host needs exactly one of key_file, password_env or agent; none is set"))
	case 1:
	default:
		errs = append(errs, errors.New("host needs exactly one of key_file, password_env or agent; several are set"))
	}

	if h.AppsRoot != "" && !path.IsAbs(h.AppsRoot) {
		errs = append(errs, fmt.Errorf("apps_root %q must be absolute", h.AppsRoot))
	}
	return errors.Join(errs...)
}

// Endpoint returns host:port with the default SSH port filled in.
func (h Host) Endpoint() string {
	port := h.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(h.Address, strconv.Itoa(port))
}

// String returns user@host:port for logs and audit records.
func (h Host) String() string {
	return h.User + "@" + h.Endpoint()
}

// KnownHostsPath resolves the known_hosts file, expanding a leading ~.
func (h Host) KnownHostsPath() string {
	if h.KnownHosts != "" {
		return ExpandHome(h.KnownHosts)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ssh", "known_hosts")
}

// Layout returns the on-host paths for app.
func (h Host) Layout(app string) Layout {
	root := h.AppsRoot
	if root == "" {
		root = DefaultAppsRoot
	}
	return Layout{App: app, AppDir: path.Join(root, app)}
}

// ExpandHome replaces a leading "~/" with the local home directory.
func ExpandHome(value string) string {
	if !strings.HasPrefix(value, "~/") {
		return value
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return value
	}
	return filepath.Join(home, value[2:])
}
