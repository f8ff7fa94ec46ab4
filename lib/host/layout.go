// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"path"
	"strings"
)

// Layout computes remote paths for one application. Paths always use
// forward slashes regardless of the local OS.
type Layout struct {
	App    string
	AppDir string
}

// VersionsDir is the directory holding bundles and release trees.
func (l Layout) VersionsDir() string { return path.Join(l.AppDir, ".versions") }

// BundlePath is where the archive for version is uploaded.
func (l Layout) BundlePath(version string) string {
	return path.Join(l.VersionsDir(), l.BundleName(version))
}

// BundleName is the archive file name for version.
func (l Layout) BundleName(version string) string {
	return l.App + "-" + version + ".bundle"
}

// VersionFromBundle inverts BundleName. ok is false for names that are
// not this application's bundles.
func (l Layout) VersionFromBundle(name string) (version string, ok bool) {
	prefix := l.App + "-"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".bundle") {
		return "", false
	}
	version = strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".bundle")
	return version, version != ""
}

// ReleaseDir is the extracted tree for version. The trailing slash is
// part of the contract: current points at the directory itself.
func (l Layout) ReleaseDir(version string) string {
	return path.Join(l.VersionsDir(), version) + "/"
}

// CurrentLink is the symlink naming the active release.
func (l Layout) CurrentLink() string { return path.Join(l.AppDir, "current") }

// EnvFile is the environment file shared by every unit.
func (l Layout) EnvFile() string { return path.Join(l.AppDir, ".env") }

// UnitsRecord lists the unit files the last install wrote, one per
// line. install.sh reads it for stale unit cleanup.
func (l Layout) UnitsRecord() string { return path.Join(l.AppDir, ".units") }
