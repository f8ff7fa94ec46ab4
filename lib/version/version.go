// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at build time.
var (
	Version   = "0.0.0-dev"
	GitCommit = ""
	BuildTime = ""
)

// Build describes one binary.
type Build struct {
	Version   string
	Commit    string
	Dirty     bool
	Time      string
	GoVersion string
	Platform  string
}

// Current returns the running binary's build. Values missing from the
// link flags come from the embedded VCS settings.
func Current() Build {
	build := Build{
		Version:   Version,
		Commit:    GitCommit,
		Time:      BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build = fromSettings(build, info.Settings)
	}
	return build
}

func fromSettings(build Build, settings []debug.BuildSetting) Build {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if build.Commit == "" {
				build.Commit = setting.Value
			}
		case "vcs.time":
			if build.Time == "" {
				build.Time = setting.Value
			}
		case "vcs.modified":
			build.Dirty = setting.Value == "true"
		}
	}
	if len(build.Commit) > 12 {
		build.Commit = build.Commit[:12]
	}
	return build
}

// String is the one-line form printed by --version.
func (b Build) String() string {
	commit := b.Commit
	if commit == "" {
		commit = "unknown"
	}
	if b.Dirty {
		commit += "-dirty"
	}
	if b.Time == "" {
		return fmt.Sprintf("%s (%s)", b.Version, commit)
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, commit, b.Time)
}

// Full adds the toolchain and platform.
func (b Build) Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s", b.String(), b.GoVersion, b.Platform)
}
