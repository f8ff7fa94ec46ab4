// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote executes commands and transfers files on the deploy
// target.
//
// [Session] wraps one SSH connection to one host. [Local] satisfies
// the same [Runner] contract by running commands through bash on the
// deploying machine; the pipeline uses it for the build stage.
//
// # Output handling
//
// A running command has up to three byte streams: stdout, stderr, and
// (when a pseudo-terminal is requested) the terminal, which the SSH
// protocol delivers as stdout. Reader goroutines do nothing but move
// raw chunks onto one channel. A single consumer loop takes chunks off
// that channel, decodes them with an incremental UTF-8 [Decoder],
// scans them with the sudo [PromptWatcher], echoes them (unless
// hidden) and accumulates them. Because exactly one goroutine touches
// decoded text, stdout and stderr never interleave mid-rune, and a
// multi-byte character split across two network reads is reassembled
// instead of corrupted.
//
// # Working directory
//
// [Session.Cd] pushes a directory and returns a restore function:
//
//	restore := session.Cd("/opt/apps/web")
//	defer restore()
//
// Every Run inside the scope is prefixed with cd. Nested scopes
// resolve relative paths against the enclosing one.
//
// # Transfers
//
// [Session.Put] tries an ordered list of [Transfer] strategies (rsync
// for large files, then the scp sink protocol, then a plain cat
// pipe) and reports every attempt in a [TransferReport].
package remote
