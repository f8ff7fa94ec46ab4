// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/drydock-dev/drydock/lib/bundle"
	"github.com/drydock-dev/drydock/lib/codec"
	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/remote"
)

// DefaultKeep is the number of releases retained when the configuration
// does not say otherwise.
const DefaultKeep = 5

// Release is one version present on the host.
type Release struct {
	Version string
	Current bool
}

// InstallOptions control how install.sh and uninstall.sh run.
type InstallOptions struct {
	// PTY runs the script on a pseudo-terminal, which keeps progress
	// output from uv and systemctl line buffered.
	PTY bool

	// Hide suppresses the script's output locally.
	Hide bool

	Timeout time.Duration
}

// Manager operates on the releases of one application.
type Manager struct {
	Runner remote.Runner
	Layout host.Layout
	Logger *slog.Logger
}

// NewManager returns a Manager for layout. A nil logger discards.
func NewManager(runner remote.Runner, layout host.Layout, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{Runner: runner, Layout: layout, Logger: logger}
}

var quiet = remote.RunOptions{Hide: true, Strict: true}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return m.Logger
}

// List returns the versions with an archive on the host, newest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	result, err := m.Runner.Run(ctx, "ls -1t "+remote.Quote(m.Layout.VersionsDir())+" 2>/dev/null || true", quiet)
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	var versions []string
	for _, name := range strings.Split(result.Stdout, "\n") {
		if version, ok := m.Layout.VersionFromBundle(strings.TrimSpace(name)); ok {
			versions = append(versions, version)
		}
	}
	return versions, nil
}

// Current returns the version current points at, or "" when there is
// no active release.
func (m *Manager) Current(ctx context.Context) (string, error) {
	result, err := m.Runner.Run(ctx, "readlink "+remote.Quote(m.Layout.CurrentLink())+" || true", quiet)
	if err != nil {
		return "", fmt.Errorf("reading current release: %w", err)
	}
	target := strings.TrimRight(result.Output(), "/")
	if target == "" {
		return "", nil
	}
	return path.Base(target), nil
}

// Releases combines List and Current.
func (m *Manager) Releases(ctx context.Context) ([]Release, error) {
	versions, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	current, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	releases := make([]Release, len(versions))
	for i, version := range versions {
		releases[i] = Release{Version: version, Current: version == current}
	}
	return releases, nil
}

// Previous returns the newest release older than current. It returns
// ErrNotFound when there is none.
func (m *Manager) Previous(ctx context.Context) (string, error) {
	releases, err := m.Releases(ctx)
	if err != nil {
		return "", err
	}
	for i, release := range releases {
		if release.Current && i+1 < len(releases) {
			return releases[i+1].Version, nil
		}
	}
	return "", fmt.Errorf("no release before the current one: %w", ErrNotFound)
}

func (m *Manager) test(ctx context.Context, flag, target string) (bool, error) {
	result, err := m.Runner.Run(ctx, "test "+flag+" "+remote.Quote(target), remote.RunOptions{Hide: true})
	if err != nil {
		return false, err
	}
	return result.OK, nil
}

// Exists reports whether version's archive is on the host.
func (m *Manager) Exists(ctx context.Context, version string) (bool, error) {
	return m.test(ctx, "-f", m.Layout.BundlePath(version))
}

// Activate points current at version. Activating the current version
// does nothing.
func (m *Manager) Activate(ctx context.Context, version string) error {
	current, err := m.Current(ctx)
	if err != nil {
		return err
	}
	if current == version {
		return nil
	}
	present, err := m.test(ctx, "-d", m.Layout.ReleaseDir(version))
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("activating %s: directory %s is missing: %w", version, m.Layout.ReleaseDir(version), ErrNotFound)
	}

	relative := ".versions/" + version + "/"
	command := fmt.Sprintf("cd %s && ln -sfn %s current.tmp-$$ && mv -Tf current.tmp-$$ current",
		remote.Quote(m.Layout.AppDir), remote.Quote(relative))
	if _, err := m.Runner.Run(ctx, command, quiet); err != nil {
		return fmt.Errorf("activating %s: %w", version, err)
	}
	m.logger().Info("activated release", "app", m.Layout.App, "version", version, "previous", current)
	return nil
}

// Deactivate removes the current link.
func (m *Manager) Deactivate(ctx context.Context) error {
	if _, err := m.Runner.Run(ctx, "rm -f "+remote.Quote(m.Layout.CurrentLink()), quiet); err != nil {
		return fmt.Errorf("removing current link: %w", err)
	}
	return nil
}

// extract unpacks version's archive into a fresh release directory.
func (m *Manager) extract(ctx context.Context, version string) error {
	present, err := m.Exists(ctx, version)
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("release %s: %w", version, ErrNotFound)
	}
	dir := remote.Quote(m.Layout.ReleaseDir(version))
	// A previous install may have left root-owned files behind.
	if _, err := m.Runner.Run(ctx, "rm -rf "+dir, remote.RunOptions{Hide: true, Strict: true, Sudo: true}); err != nil {
		return fmt.Errorf("clearing release %s: %w", version, err)
	}
	command := fmt.Sprintf("mkdir -p %s && tar -xzf %s -C %s", dir, remote.Quote(m.Layout.BundlePath(version)), dir)
	if _, err := m.Runner.Run(ctx, command, quiet); err != nil {
		return fmt.Errorf("extracting release %s: %w", version, err)
	}
	return nil
}

func (m *Manager) script(ctx context.Context, version, name string, opts InstallOptions) error {
	scriptPath := m.Layout.ReleaseDir(version) + name
	started := time.Now()
	_, err := m.Runner.Run(ctx, "bash "+remote.Quote(scriptPath), remote.RunOptions{
		Hide:    opts.Hide,
		Strict:  true,
		PTY:     opts.PTY,
		Sudo:    true,
		Timeout: opts.Timeout,
	})
	var commandErr *remote.CommandError
	if errors.As(err, &commandErr) {
		return &ScriptError{
			Script:   name,
			Version:  version,
			ExitCode: commandErr.ExitCode,
			Output:   commandErr.Stderr,
			Err:      err,
		}
	}
	if err != nil {
		return fmt.Errorf("running %s for %s: %w", name, version, err)
	}
	m.logger().Info("ran release script", "script", name, "version", version, "elapsed", time.Since(started))
	return nil
}

// Install extracts version's archive and runs its install.sh as root.
// It does not activate the release.
func (m *Manager) Install(ctx context.Context, version string, opts InstallOptions) error {
	if err := m.extract(ctx, version); err != nil {
		return err
	}
	return m.script(ctx, version, "install.sh", opts)
}

// Uninstall runs version's uninstall.sh, extracting the archive first
// when the release directory is gone.
func (m *Manager) Uninstall(ctx context.Context, version string, opts InstallOptions) error {
	present, err := m.test(ctx, "-f", m.Layout.ReleaseDir(version)+"uninstall.sh")
	if err != nil {
		return err
	}
	if !present {
		if err := m.extract(ctx, version); err != nil {
			return err
		}
	}
	return m.script(ctx, version, "uninstall.sh", opts)
}

// Remove deletes version's directory and archive. The active release
// cannot be removed.
func (m *Manager) Remove(ctx context.Context, version string) error {
	current, err := m.Current(ctx)
	if err != nil {
		return err
	}
	if version == current {
		return fmt.Errorf("removing %s: %w", version, ErrActive)
	}
	command := "rm -rf " + remote.Quote(m.Layout.ReleaseDir(version)) + " " + remote.Quote(m.Layout.BundlePath(version))
	if _, err := m.Runner.Run(ctx, command, remote.RunOptions{Hide: true, Strict: true, Sudo: true}); err != nil {
		return fmt.Errorf("removing %s: %w", version, err)
	}
	m.logger().Info("removed release", "app", m.Layout.App, "version", version)
	return nil
}

// RemoveArchive deletes only version's archive. It is used to drop a
// broken upload that is still active, so it stops being offered as a
// rollback target.
func (m *Manager) RemoveArchive(ctx context.Context, version string) error {
	if _, err := m.Runner.Run(ctx, "rm -f "+remote.Quote(m.Layout.BundlePath(version)), quiet); err != nil {
		return fmt.Errorf("removing archive of %s: %w", version, err)
	}
	return nil
}

// Rollback installs and activates version. With clean, every release
// newer than version is removed afterwards; callers confirm that with
// the operator first. It returns the removed versions.
func (m *Manager) Rollback(ctx context.Context, version string, clean bool, opts InstallOptions) ([]string, error) {
	versions, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	index := slices.Index(versions, version)
	if index < 0 {
		return nil, fmt.Errorf("rollback target %s: %w", version, ErrNotFound)
	}

	current, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	if current != version {
		if err := m.Install(ctx, version, opts); err != nil {
			return nil, err
		}
		if err := m.Activate(ctx, version); err != nil {
			return nil, err
		}
	}
	if !clean {
		return nil, nil
	}

	var removed []string
	for _, newer := range versions[:index] {
		if err := m.Remove(ctx, newer); err != nil {
			return removed, err
		}
		removed = append(removed, newer)
	}
	return removed, nil
}

// Prune removes all but the newest keep releases. The active release
// is always kept, even when it is older. keep <= 0 disables pruning.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	versions, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(versions) <= keep {
		return nil, nil
	}
	current, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, version := range versions[keep:] {
		if version == current {
			continue
		}
		if err := m.Remove(ctx, version); err != nil {
			return removed, err
		}
		removed = append(removed, version)
	}
	if len(removed) > 0 {
		m.logger().Info("pruned releases", "app", m.Layout.App, "removed", removed, "keep", keep)
	}
	return removed, nil
}

// Manifest reads version's manifest from its release directory, or
// from its archive when the directory is gone. The bytes travel base64
// encoded because command output is decoded as text. The command is
// plain POSIX sh: the login shell of the deploy user need not be bash.
func (m *Manager) Manifest(ctx context.Context, version string) (*bundle.Manifest, error) {
	file := remote.Quote(m.Layout.ReleaseDir(version) + bundle.ManifestName)
	archive := remote.Quote(m.Layout.BundlePath(version))
	// The archive is listed first because the exit status of a
	// pipeline is base64's, which succeeds on empty input.
	command := fmt.Sprintf("if [ -f %[1]s ]; then base64 -w0 %[1]s; elif tar -tzf %[2]s %[3]s >/dev/null 2>&1; then tar -xzOf %[2]s %[3]s | base64 -w0; else false; fi",
		file, archive, bundle.ManifestName)
	result, err := m.Runner.Run(ctx, command, remote.RunOptions{Hide: true})
	if err != nil {
		return nil, fmt.Errorf("reading manifest of %s: %w", version, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("manifest of %s: %w", version, ErrNotFound)
	}
	data, err := base64.StdEncoding.DecodeString(result.Output())
	if err != nil {
		return nil, fmt.Errorf("manifest of %s: %w", version, err)
	}
	manifest, err := bundle.DecodeManifest(data)
	if err != nil {
		if diagnostic, diagErr := codec.Diagnose(data); diagErr == nil {
			m.logger().Debug("undecodable manifest", "version", version, "cbor", diagnostic)
		}
		return nil, err
	}
	return manifest, nil
}

// Purge deletes the whole application directory, every release
// included. Callers uninstall the active release first.
func (m *Manager) Purge(ctx context.Context) error {
	if _, err := m.Runner.Run(ctx, "rm -rf "+remote.Quote(m.Layout.AppDir), remote.RunOptions{Hide: true, Strict: true, Sudo: true}); err != nil {
		return fmt.Errorf("removing %s: %w", m.Layout.AppDir, err)
	}
	m.logger().Info("removed application directory", "app", m.Layout.App, "dir", m.Layout.AppDir)
	return nil
}
