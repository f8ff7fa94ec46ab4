// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/drydock-dev/drydock/lib/deploy"
	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/lock"
	"github.com/drydock-dev/drydock/lib/secrets"
	"github.com/drydock-dev/drydock/lib/unit"
	"github.com/drydock-dev/drydock/lib/webserver"
)

// Project is a validated configuration.
type Project struct {
	Config  *Config
	Host    host.Host
	Plan    deploy.Plan
	Secrets secrets.Config

	// LockURL is empty when locking is disabled.
	LockURL string
	LockTTL time.Duration

	MetricsTextfile string

	// AuditPath is empty when the audit log is disabled.
	AuditPath string
}

// DefaultAuditPath is $XDG_STATE_HOME/drydock/audit.db, falling back to
// ~/.local/state.
func DefaultAuditPath() string {
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "drydock", "audit.db")
}

// Project validates c and builds the typed values. Every problem is
// reported in one *deploy.ConfigurationError.
func (c *Config) Project() (*Project, error) {
	var errs []error
	duration := func(setting, value string) time.Duration {
		if value == "" {
			return 0
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a duration", setting, value))
			return 0
		}
		if parsed < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", setting))
		}
		return parsed
	}

	target := host.Host{
		Address:               c.Host.Address,
		Port:                  c.Host.Port,
		User:                  c.Host.User,
		KeyFile:               c.Host.KeyFile,
		PasswordEnv:           c.Host.PasswordEnv,
		Agent:                 c.Host.Agent,
		KnownHosts:            c.Host.KnownHosts,
		InsecureIgnoreHostKey: c.Host.InsecureIgnoreHostKey,
		AppsRoot:              c.AppsRoot,
		EnvFile:               c.Host.EnvFile,
	}
	if err := target.Validate(); err != nil {
		errs = append(errs, err)
	}

	mode := unit.Mode(c.InstallationMode)
	if mode == "" {
		mode = unit.ModePython
	}

	processes, processErrs := c.processSpecs()
	errs = append(errs, processErrs...)

	var site *webserver.Site
	if c.Webserver.Enabled {
		site = c.site()
	}

	keep := 0
	if c.KeepReleases != nil {
		keep = *c.KeepReleases
		switch {
		case keep < 0:
			errs = append(errs, errors.New("keep_releases must not be negative"))
		case keep == 0:
			keep = -1
		}
	}

	if c.Secrets.Adapter != "" && !slices.Contains(secrets.Adapters(), c.Secrets.Adapter) {
		errs = append(errs, fmt.Errorf("secrets.adapter %q is not one of %s", c.Secrets.Adapter, strings.Join(secrets.Adapters(), ", ")))
	}
	if c.Upload.Attempts < 0 || c.Verify.Attempts < 0 {
		errs = append(errs, errors.New("upload.attempts and verify.attempts must not be negative"))
	}

	plan := deploy.Plan{
		App:             c.App,
		Version:         c.Version,
		Mode:            mode,
		User:            c.ServiceUser,
		BuildCommand:    c.BuildCommand,
		BuildDir:        c.BuildDir,
		DistFile:        strings.ReplaceAll(c.DistFile, "{version}", c.Version),
		Requirements:    c.Requirements,
		PythonVersion:   c.PythonVersion,
		EnvFile:         c.Host.EnvFile,
		SecretsLimit:    c.Secrets.Limit,
		Processes:       processes,
		DropInDir:       c.DropInDir,
		Site:            site,
		CaddyConfigPath: c.Webserver.ConfigPath,
		Keep:            keep,
		UploadAttempts:  c.Upload.Attempts,
		UploadBackoff:   duration("upload.interval", c.Upload.Interval),
		VerifyAttempts:  c.Verify.Attempts,
		VerifyInterval:  duration("verify.interval", c.Verify.Interval),
		OutputDir:       c.OutputDir,
	}
	var planErr *deploy.ConfigurationError
	if err := plan.Validate(); errors.As(err, &planErr) {
		errs = append(errs, planErr.Err)
	}

	lockTTL := duration("lock.ttl", c.Lock.TTL)
	if lockTTL == 0 {
		lockTTL = lock.DefaultTTL
	}

	if err := errors.Join(errs...); err != nil {
		if c.Path != "" {
			err = fmt.Errorf("%s: %w", c.Path, err)
		}
		return nil, &deploy.ConfigurationError{Err: err}
	}

	auditPath := c.Audit.Path
	switch auditPath {
	case "off":
		auditPath = ""
	case "":
		auditPath = DefaultAuditPath()
	}

	return &Project{
		Config: c,
		Host:   target,
		Plan:   plan,
		Secrets: secrets.Config{
			Adapter:        c.Secrets.Adapter,
			Limit:          c.Secrets.Limit,
			Command:        c.Secrets.Command,
			AgeFile:        c.Secrets.AgeFile,
			AgeIdentity:    c.Secrets.AgeIdentity,
			KeyringService: c.Secrets.KeyringService,
		},
		LockURL:         c.Lock.RedisURL,
		LockTTL:         lockTTL,
		MetricsTextfile: c.Metrics.Textfile,
		AuditPath:       auditPath,
	}, nil
}

// processSpecs converts the processes in name order.
func (c *Config) processSpecs() ([]unit.ProcessSpec, []error) {
	names := make([]string, 0, len(c.Processes))
	for name := range c.Processes {
		names = append(names, name)
	}
	sort.Strings(names)

	var specs []unit.ProcessSpec
	var errs []error
	for _, name := range names {
		process := c.Processes[name]
		spec := unit.ProcessSpec{
			Name:     name,
			Command:  process.Command,
			Replicas: process.Replicas,
			Listen:   process.Listen,
			Socket:   process.Socket,
		}
		if process.Timer != nil {
			spec.Timer = &unit.TimerSpec{
				OnCalendar:         process.Timer.OnCalendar,
				OnBootSec:          process.Timer.OnBootSec,
				OnUnitActiveSec:    process.Timer.OnUnitActiveSec,
				Persistent:         process.Timer.Persistent,
				RandomizedDelaySec: process.Timer.RandomizedDelaySec,
			}
		}
		validated, err := unit.NewProcessSpec(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, validated)
	}
	return specs, errs
}

func (c *Config) site() *webserver.Site {
	site := &webserver.Site{
		App:      c.App,
		Domain:   c.Webserver.Domain,
		Upstream: c.Webserver.Upstream,
	}
	paths := make([]string, 0, len(c.Webserver.Routes))
	for path := range c.Webserver.Routes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		route := c.Webserver.Routes[path]
		site.Routes = append(site.Routes, webserver.Route{
			Path:     path,
			Static:   route.Static,
			Process:  route.Process,
			Upstream: route.Upstream,
		})
	}
	return site
}
