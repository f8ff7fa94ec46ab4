// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package lock serializes drydock operations on one application across
// operators through a Redis lease.
//
// A lease is a key set with SET NX PX whose value is a token naming the
// holder. Acquire polls until the key is free or ctx ends. Release and
// Extend only touch the key while it still holds the caller's token, so
// a lease that expired and was taken by someone else is never deleted
// from under them.
package lock
