// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest provides the two content hashes drydock relies on.
//
// Bundle archives are identified by SHA-256 because the remote side
// recomputes the checksum with coreutils sha256sum after upload, and
// the two hex strings must compare equal:
//
//   - [HashFile] streams a file through SHA-256 with constant memory
//   - [FormatSHA256] and [ParseSHA256] convert to and from the hex form
//     printed by sha256sum
//   - [ParseSumOutput] extracts the digest from a sha256sum line
//
// Rendered unit files are identified by BLAKE3 ([Content]). Those
// digests never leave drydock; they are stored in the bundle manifest
// and compared between releases to decide which units need a restart.
package digest
