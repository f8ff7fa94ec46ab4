// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package webserver renders the Caddy site configuration that fronts an
// application.
//
// A [Site] is a domain plus an ordered set of [Route] values. Each
// route serves a path either from a static directory or by proxying to
// a process. Process routes resolve to the address the process actually
// listens on: its listen address, its unix socket when socket-activated,
// or one socket per instance for a socket-activated template, which
// Caddy load-balances across.
//
// [Render] is a pure function. The resulting file is shipped inside the
// bundle and installed by the bundle's install script, which validates
// it with "caddy validate" and restores the previous file if the reload
// fails.
package webserver
