// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the drydock build.
//
// Release builds inject the values with -ldflags:
//
//	go build -ldflags "-X github.com/drydock-dev/drydock/lib/version.Version=1.0.0" ./cmd/drydock
//
// Development builds fall back to the VCS stamp the Go toolchain
// embeds, so "go install" from a checkout still names its commit.
package version
