// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package release manages the releases of one application on its host.
//
// Every uploaded bundle stays on the host as
// {app_dir}/.versions/{app}-{version}.bundle and is extracted next to
// it into {app_dir}/.versions/{version}/. The {app_dir}/current symlink
// names the active release and is swapped atomically by [Manager.Activate]
// (a temporary link renamed over the old one), so readers never observe
// a missing or half-written link.
//
// The bundle archives are the source of truth: [Manager.List] orders
// releases by archive modification time, newest first, and a release
// whose directory was removed can be reinstalled from its archive.
// All operations go through a [remote.Runner], so the same code drives
// an SSH session in production and a local shell in tests.
package release
