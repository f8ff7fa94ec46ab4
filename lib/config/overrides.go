// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Override is one DRYDOCK_* environment variable and the setting it
// replaces.
type Override struct {
	Variable string
	Setting  string
	apply    func(c *Config, value string) error
}

func stringOverride(variable, setting string, field func(*Config) *string) Override {
	return Override{Variable: variable, Setting: setting, apply: func(c *Config, value string) error {
		*field(c) = value
		return nil
	}}
}

func intOverride(variable, setting string, field func(*Config) *int) Override {
	return Override{Variable: variable, Setting: setting, apply: func(c *Config, value string) error {
		number, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer", variable, value)
		}
		*field(c) = number
		return nil
	}}
}

// Overrides lists the environment variables that replace file settings.
var Overrides = []Override{
	stringOverride("DRYDOCK_VERSION", "version", func(c *Config) *string { return &c.Version }),
	stringOverride("DRYDOCK_BUILD_COMMAND", "build_command", func(c *Config) *string { return &c.BuildCommand }),
	stringOverride("DRYDOCK_DISTFILE", "distfile", func(c *Config) *string { return &c.DistFile }),
	stringOverride("DRYDOCK_APPS_ROOT", "apps_root", func(c *Config) *string { return &c.AppsRoot }),
	stringOverride("DRYDOCK_HOST", "host.address", func(c *Config) *string { return &c.Host.Address }),
	intOverride("DRYDOCK_PORT", "host.port", func(c *Config) *int { return &c.Host.Port }),
	stringOverride("DRYDOCK_USER", "host.user", func(c *Config) *string { return &c.Host.User }),
	stringOverride("DRYDOCK_KEY_FILE", "host.key_file", func(c *Config) *string { return &c.Host.KeyFile }),
	stringOverride("DRYDOCK_ENV_FILE", "host.env_file", func(c *Config) *string { return &c.Host.EnvFile }),
	stringOverride("DRYDOCK_SECRETS_ADAPTER", "secrets.adapter", func(c *Config) *string { return &c.Secrets.Adapter }),
	stringOverride("DRYDOCK_LOCK_REDIS_URL", "lock.redis_url", func(c *Config) *string { return &c.Lock.RedisURL }),
	stringOverride("DRYDOCK_METRICS_TEXTFILE", "metrics.textfile", func(c *Config) *string { return &c.Metrics.Textfile }),
	stringOverride("DRYDOCK_AUDIT_PATH", "audit.path", func(c *Config) *string { return &c.Audit.Path }),
	{Variable: "DRYDOCK_KEEP_RELEASES", Setting: "keep_releases", apply: func(c *Config, value string) error {
		keep, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("DRYDOCK_KEEP_RELEASES=%q is not an integer", value)
		}
		c.KeepReleases = &keep
		return nil
	}},
}

func (c *Config) applyOverrides(lookup func(string) (string, bool)) error {
	var errs []error
	for _, override := range Overrides {
		value, ok := lookup(override.Variable)
		if !ok || value == "" {
			continue
		}
		if err := override.apply(c, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
