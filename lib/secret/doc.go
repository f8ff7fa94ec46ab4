// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credentials in memory that is locked against
// swapping, excluded from core dumps, and zeroed on Close.
//
// drydock keeps two kinds of material in a [Buffer]: the sudo password
// a remote session injects when privilege escalation prompts for it,
// and age identities used to decrypt secret files. Neither should end
// up in a swap partition or a crash dump of the deploying machine.
//
// Constructors:
//
//   - [New] allocates a zero-filled buffer
//   - [NewFromBytes] copies into protected memory and zeros the source
//   - [FromEnv] reads an environment variable
//   - [ReadFile] reads a file, trimming surrounding whitespace
//
// Any access after Close panics. Close is idempotent.
package secret
