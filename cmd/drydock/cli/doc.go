// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the drydock binary.
//
// A [Command] owns a pflag set, optional subcommands and a Run
// function. Execute parses flags, dispatches by the first positional
// argument and offers "did you mean" suggestions for misspelled
// commands and flags. A root command may carry flags of its own; they
// are parsed before dispatch and must precede the subcommand name.
//
// Errors returned from Run travel back to main. Errors implementing
// interface{ ExitCode() int } choose the process exit status; a
// [ToolError] adds a category and hints that main prints under the
// message.
package cli
