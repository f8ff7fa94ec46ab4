// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets resolves secret references in an environment file.
//
// An entry whose whole value is a marker of the form $NAME is a
// reference: [Resolve] fetches NAME from a [Source] and substitutes the
// value. "$$" at the start of a value escapes a literal dollar sign.
// References are fetched concurrently through an errgroup bounded by a
// limit, one task per distinct name. The first failure cancels the
// remaining lookups and is returned as a *ResolveError naming the
// secret; no partial result is produced.
//
// Sources:
//
//   - [EnvSource] reads the local process environment
//   - [CommandSource] runs a password manager CLI, with presets for
//     Bitwarden, 1Password and Doppler
//   - [AgeSource] reads an age-encrypted dotenv file
//   - [KeyringSource] reads the OS keyring
//
// Resolved content is returned in a secret.Buffer.
package secrets
