// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"sort"
	"strings"
)

// pathPrefix puts user-local tool directories (uv, cargo-installed
// binaries) on PATH for non-login SSH shells.
const pathPrefix = `export PATH="$HOME/.cargo/bin:$HOME/.local/bin:$PATH"`

// sudoMode selects how a sudo command is prefixed.
type sudoMode int

const (
	sudoNone sudoMode = iota
	// sudoNonInteractive fails instead of prompting.
	sudoNonInteractive
	// sudoWithPassword reads the password from stdin after printing
	// SudoPrompt.
	sudoWithPassword
)

// compose builds the shell line for command: PATH export, env
// exports, cd into dir, then the command itself. With sudo the exports
// and command run inside a quoted bash -c so they survive sudo's
// environment reset.
func compose(dir, command string, env map[string]string, mode sudoMode) string {
	script := []string{pathPrefix}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		script = append(script, "export "+key+"="+Quote(env[key]))
	}
	script = append(script, command)
	body := strings.Join(script, " && ")

	switch mode {
	case sudoNonInteractive:
		body = "sudo -n -- bash -c " + Quote(body)
	case sudoWithPassword:
		body = "sudo -S -p " + Quote(SudoPrompt) + " -- bash -c " + Quote(body)
	}

	if dir != "" {
		body = "cd " + Quote(dir) + " && " + body
	}
	return body
}
