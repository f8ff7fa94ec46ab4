// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is drydock's CBOR configuration. The bundle manifest
// is written with Core Deterministic Encoding so that two bundles built
// from identical inputs carry byte-identical manifests, which keeps the
// archive checksum stable across rebuilds.
package codec
