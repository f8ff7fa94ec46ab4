// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"errors"
	"fmt"
	"time"

	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/release"
	"github.com/drydock-dev/drydock/lib/unit"
	"github.com/drydock-dev/drydock/lib/webserver"
)

// Defaults applied by Plan.withDefaults.
const (
	DefaultUploadAttempts  = 3
	DefaultUploadBackoff   = 2 * time.Second
	DefaultVerifyAttempts  = 5
	DefaultVerifyInterval  = time.Second
	DefaultRollbackTimeout = 2 * time.Minute
	DefaultInstallTimeout  = 15 * time.Minute

	// journalLines is how much of a failed unit's journal a
	// ServiceError carries.
	journalLines = 30
)

// Plan is everything one deploy needs to know about the application.
// Zero numeric fields take the package defaults.
type Plan struct {
	App     string
	Version string
	Mode    unit.Mode

	// User runs the services. Empty means App.
	User string

	// BuildCommand runs locally, in BuildDir, before anything else.
	// Empty skips the build.
	BuildCommand string
	BuildDir     string

	// DistFile is the local build output, with the version already
	// substituted.
	DistFile      string
	Requirements  string
	PythonVersion string

	// EnvFile is the local dotenv file whose $NAME markers are
	// resolved into the release's .env. Empty ships no .env.
	EnvFile      string
	SecretsLimit int

	Processes []unit.ProcessSpec
	DropInDir string

	// Site configures Caddy. Nil disables the webserver.
	Site            *webserver.Site
	CaddyConfigPath string

	// Keep is the number of releases retained after a successful
	// deploy. Zero means release.DefaultKeep; negative disables
	// pruning.
	Keep int

	FullRestart bool
	NoRollback  bool

	UploadAttempts  int
	UploadBackoff   time.Duration
	VerifyAttempts  int
	VerifyInterval  time.Duration
	RollbackTimeout time.Duration
	InstallTimeout  time.Duration

	// PTY runs install.sh on a pseudo-terminal.
	PTY bool

	// OutputDir receives the local bundle. Empty means a temporary
	// directory.
	OutputDir string
}

// ServiceUser returns the account the services run as.
func (p Plan) ServiceUser() string {
	if p.User != "" {
		return p.User
	}
	return p.App
}

func (p Plan) withDefaults() Plan {
	if p.UploadAttempts <= 0 {
		p.UploadAttempts = DefaultUploadAttempts
	}
	if p.UploadBackoff <= 0 {
		p.UploadBackoff = DefaultUploadBackoff
	}
	if p.VerifyAttempts <= 0 {
		p.VerifyAttempts = DefaultVerifyAttempts
	}
	if p.VerifyInterval <= 0 {
		p.VerifyInterval = DefaultVerifyInterval
	}
	if p.RollbackTimeout <= 0 {
		p.RollbackTimeout = DefaultRollbackTimeout
	}
	if p.InstallTimeout <= 0 {
		p.InstallTimeout = DefaultInstallTimeout
	}
	if p.Keep == 0 {
		p.Keep = release.DefaultKeep
	}
	if p.Site != nil && p.CaddyConfigPath == "" {
		p.CaddyConfigPath = webserver.ConfigPath(p.App)
	}
	return p
}

// UnitContext is the rendering context for the plan's units under
// layout.
func (p Plan) UnitContext(layout host.Layout) unit.Context {
	return unit.Context{
		App:       p.App,
		User:      p.ServiceUser(),
		AppDir:    layout.AppDir,
		Mode:      p.Mode,
		Webserver: p.Site != nil,
		DropInDir: p.DropInDir,
		Release:   p.Version,
	}
}

// Validate checks the plan without touching the filesystem.
func (p Plan) Validate() error {
	var errs []error
	if p.App == "" {
		errs = append(errs, errors.New("app is required"))
	}
	if p.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if !p.Mode.Valid() {
		errs = append(errs, fmt.Errorf("unknown installation mode %q", p.Mode))
	}
	if p.DistFile == "" {
		errs = append(errs, errors.New("distfile is required"))
	}
	if len(p.Processes) == 0 {
		errs = append(errs, errors.New("at least one process is required"))
	}
	for _, spec := range p.Processes {
		if err := spec.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.Site != nil {
		if err := p.Site.Validate(p.Processes); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}
