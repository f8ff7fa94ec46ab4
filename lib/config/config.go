// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Names are the file names searched in the working directory.
var Names = []string{"drydock.yaml", "drydock.yml", "drydock.jsonc"}

// Config mirrors the file.
type Config struct {
	App              string `yaml:"app"`
	Version          string `yaml:"version"`
	BuildCommand     string `yaml:"build_command"`
	BuildDir         string `yaml:"build_dir"`
	DistFile         string `yaml:"distfile"`
	Requirements     string `yaml:"requirements"`
	InstallationMode string `yaml:"installation_mode"`
	PythonVersion    string `yaml:"python_version"`
	AppsRoot         string `yaml:"apps_root"`
	ServiceUser      string `yaml:"service_user"`
	DropInDir        string `yaml:"dropin_dir"`
	OutputDir        string `yaml:"output_dir"`

	// KeepReleases is nil when unset; 0 keeps every release.
	KeepReleases *int `yaml:"keep_releases"`

	Host      HostConfig               `yaml:"host"`
	Processes map[string]ProcessConfig `yaml:"processes"`
	Webserver WebserverConfig          `yaml:"webserver"`
	Secrets   SecretsConfig            `yaml:"secrets"`
	Upload    RetryConfig              `yaml:"upload"`
	Verify    RetryConfig              `yaml:"verify"`
	Lock      LockConfig               `yaml:"lock"`
	Metrics   MetricsConfig            `yaml:"metrics"`
	Audit     AuditConfig              `yaml:"audit"`

	// Path is the file the configuration was read from.
	Path string `yaml:"-"`
}

type HostConfig struct {
	Address               string `yaml:"address"`
	Port                  int    `yaml:"port"`
	User                  string `yaml:"user"`
	KeyFile               string `yaml:"key_file"`
	PasswordEnv           string `yaml:"password_env"`
	Agent                 bool   `yaml:"agent"`
	KnownHosts            string `yaml:"known_hosts"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key"`
	EnvFile               string `yaml:"env_file"`
}

type ProcessConfig struct {
	Command  string       `yaml:"command"`
	Replicas int          `yaml:"replicas"`
	Socket   bool         `yaml:"socket"`
	Listen   string       `yaml:"listen"`
	Timer    *TimerConfig `yaml:"timer"`
}

type TimerConfig struct {
	OnCalendar         string `yaml:"on_calendar"`
	OnBootSec          string `yaml:"on_boot_sec"`
	OnUnitActiveSec    string `yaml:"on_unit_active_sec"`
	Persistent         bool   `yaml:"persistent"`
	RandomizedDelaySec string `yaml:"randomized_delay_sec"`
}

type WebserverConfig struct {
	Enabled    bool                   `yaml:"enabled"`
	Domain     string                 `yaml:"domain"`
	ConfigPath string                 `yaml:"config_path"`
	Upstream   string                 `yaml:"upstream"`
	Routes     map[string]RouteConfig `yaml:"routes"`
}

type RouteConfig struct {
	Static   string `yaml:"static"`
	Process  string `yaml:"process"`
	Upstream string `yaml:"upstream"`
}

type SecretsConfig struct {
	Adapter        string `yaml:"adapter"`
	Limit          int    `yaml:"limit"`
	Command        string `yaml:"command"`
	AgeFile        string `yaml:"age_file"`
	AgeIdentity    string `yaml:"age_identity"`
	KeyringService string `yaml:"keyring_service"`
}

// RetryConfig bounds the upload and verification loops. Durations use
// time.ParseDuration syntax.
type RetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Interval string `yaml:"interval"`
}

type LockConfig struct {
	RedisURL string `yaml:"redis_url"`
	TTL      string `yaml:"ttl"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type AuditConfig struct {
	// Path defaults to $XDG_STATE_HOME/drydock/audit.db. "off"
	// disables the audit log.
	Path string `yaml:"path"`
}

// Find returns the configuration file to read. explicit wins, then
// $DRYDOCK_CONFIG, then the first of Names present in dir.
func Find(explicit, dir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if fromEnv := os.Getenv("DRYDOCK_CONFIG"); fromEnv != "" {
		return fromEnv, nil
	}
	for _, name := range Names {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s in %s; pass --config or set DRYDOCK_CONFIG", strings.Join(Names, ", "), dir)
}

// Load reads, expands and overrides the file at path. It does not
// validate; call Project for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file %s does not exist", path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	config, err := Parse(data, filepath.Ext(path) == ".jsonc" || filepath.Ext(path) == ".json")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	config.Path = absolute
	if err := config.applyOverrides(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	config.resolvePaths(filepath.Dir(absolute))
	return config, nil
}

// Parse decodes a YAML document, or JSON with comments when jsoncInput
// is set, and expands variables.
func Parse(data []byte, jsoncInput bool) (*Config, error) {
	if jsoncInput {
		// JSON is valid YAML, so one set of struct tags serves both.
		data = jsonc.ToJSON(data)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var config Config
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	config.expand(os.LookupEnv)
	return &config, nil
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}. An unset variable
// without a default expands to "".
func expandVars(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value, ok := lookup(parts[1]); ok && value != "" {
			return value
		}
		return parts[2]
	})
}

func (c *Config) expand(lookup func(string) (string, bool)) {
	for _, field := range []*string{
		&c.App, &c.Version, &c.BuildCommand, &c.BuildDir, &c.DistFile,
		&c.Requirements, &c.PythonVersion, &c.AppsRoot, &c.ServiceUser,
		&c.DropInDir, &c.OutputDir,
		&c.Host.Address, &c.Host.User, &c.Host.KeyFile, &c.Host.KnownHosts, &c.Host.EnvFile,
		&c.Webserver.Domain, &c.Webserver.ConfigPath, &c.Webserver.Upstream,
		&c.Secrets.AgeFile, &c.Secrets.AgeIdentity, &c.Secrets.KeyringService,
		&c.Lock.RedisURL, &c.Metrics.Textfile, &c.Audit.Path,
	} {
		*field = expandVars(*field, lookup)
	}
	for name, process := range c.Processes {
		process.Command = expandVars(process.Command, lookup)
		process.Listen = expandVars(process.Listen, lookup)
		c.Processes[name] = process
	}
	for path, route := range c.Webserver.Routes {
		route.Static = expandVars(route.Static, lookup)
		route.Upstream = expandVars(route.Upstream, lookup)
		c.Webserver.Routes[path] = route
	}
}

// resolvePaths makes local paths absolute relative to dir, or to the
// build directory for build output, and expands a leading ~/. Paths on the host (apps_root, static routes) are left
// alone.
func (c *Config) resolvePaths(dir string) {
	under := func(base, path string) string {
		if path == "" {
			return path
		}
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err == nil {
				return filepath.Join(home, path[2:])
			}
			return path
		}
		if filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(base, path)
	}
	local := func(path string) string { return under(dir, path) }

	if c.BuildDir == "" {
		c.BuildDir = dir
	}
	c.BuildDir = local(c.BuildDir)
	// Build output is found relative to where the build ran.
	c.DistFile = under(c.BuildDir, c.DistFile)
	c.Requirements = under(c.BuildDir, c.Requirements)
	for _, field := range []*string{
		&c.DropInDir, &c.OutputDir,
		&c.Host.KeyFile, &c.Host.KnownHosts, &c.Host.EnvFile,
		&c.Secrets.AgeFile, &c.Secrets.AgeIdentity, &c.Metrics.Textfile,
	} {
		*field = local(*field)
	}
	if c.Audit.Path != "off" {
		c.Audit.Path = local(c.Audit.Path)
	}
}
