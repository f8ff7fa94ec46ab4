// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts and decrypts environment files with age.
//
// drydock keeps production secrets next to the project as an
// age-encrypted dotenv file. [Encrypt] seals plaintext to one or more
// x25519 recipients and returns ASCII-armored ciphertext suitable for
// committing. [DecryptFile] opens such a file (armored or binary) with
// the identities in an identity file and returns the plaintext in a
// [secret.Buffer], so it never lingers on the Go heap.
//
// [GenerateKeypair] creates a new identity for "drydock seal --keygen".
package sealed
