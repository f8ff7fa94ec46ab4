// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/drydock-dev/drydock/lib/remote"
	"github.com/drydock-dev/drydock/lib/sealed"
	"github.com/drydock-dev/drydock/lib/secret"
)

// EnvSource reads secrets from the local process environment.
type EnvSource struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(name string) (string, bool)
}

func (s EnvSource) Fetch(_ context.Context, name string) (*secret.Buffer, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(name)
	if !ok || value == "" {
		return nil, ErrNotFound
	}
	return secret.NewFromBytes([]byte(value))
}

// Command templates for password manager CLIs. {name} is replaced with
// the shell-quoted secret name.
var Presets = map[string]string{
	"bitwarden": "bw get password {name}",
	"1password": "op read {name}",
	"doppler":   "doppler secrets get {name} --plain",
}

// CommandSource runs Template for each secret and reads the value from
// stdout, minus the trailing newline.
type CommandSource struct {
	Runner   remote.Runner
	Template string
}

func (s *CommandSource) Fetch(ctx context.Context, name string) (*secret.Buffer, error) {
	command := strings.ReplaceAll(s.Template, "{name}", remote.Quote(name))
	result, err := s.Runner.Run(ctx, command, remote.RunOptions{Hide: true, Strict: true})
	if err != nil {
		return nil, err
	}
	value := strings.TrimRight(result.Stdout, "\r\n")
	if value == "" {
		return nil, ErrNotFound
	}
	return secret.NewFromBytes([]byte(value))
}

// AgeSource reads secrets from an age-encrypted dotenv file. The file is
// decrypted on first use and its values held in locked memory until
// Close.
type AgeSource struct {
	Path         string
	IdentityPath string

	once   sync.Once
	values map[string]*secret.Buffer
	err    error
}

func (s *AgeSource) load() {
	plaintext, err := sealed.DecryptFile(s.Path, s.IdentityPath)
	if err != nil {
		s.err = err
		return
	}
	defer plaintext.Close()

	s.values = make(map[string]*secret.Buffer)
	for key, value := range Parse(plaintext.Bytes()) {
		if value == "" {
			continue
		}
		buffer, err := secret.NewFromBytes([]byte(value))
		if err != nil {
			s.err = err
			return
		}
		s.values[key] = buffer
	}
}

func (s *AgeSource) Fetch(_ context.Context, name string) (*secret.Buffer, error) {
	s.once.Do(s.load)
	if s.err != nil {
		return nil, s.err
	}
	value, ok := s.values[name]
	if !ok {
		return nil, ErrNotFound
	}
	return secret.NewFromBytes(append([]byte(nil), value.Bytes()...))
}

// Close releases the decrypted values.
func (s *AgeSource) Close() error {
	for _, value := range s.values {
		value.Close()
	}
	s.values = nil
	return nil
}

// KeyringSource reads secrets from the OS keyring (Secret Service,
// macOS Keychain or Windows Credential Manager) under Service, with
// the secret name as the account.
type KeyringSource struct {
	Service string
}

func (s KeyringSource) Fetch(_ context.Context, name string) (*secret.Buffer, error) {
	value, err := keyring.Get(s.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring: %w", err)
	}
	if value == "" {
		return nil, ErrNotFound
	}
	return secret.NewFromBytes([]byte(value))
}

// Config selects and configures a source.
type Config struct {
	// Adapter is "env", "command", "age", "keyring", or a preset name
	// from Presets.
	Adapter string
	Limit   int

	// Command is the template for the "command" adapter.
	Command string

	AgeFile     string
	AgeIdentity string

	KeyringService string
}

// Adapters lists every accepted Adapter value.
func Adapters() []string {
	names := []string{"env", "command", "age", "keyring"}
	for preset := range Presets {
		names = append(names, preset)
	}
	sort.Strings(names[4:])
	return names
}

// New builds the source described by config. runner executes command
// and preset adapters, normally a remote.Local.
func New(config Config, runner remote.Runner) (Source, error) {
	switch config.Adapter {
	case "", "env":
		return EnvSource{}, nil
	case "command":
		if !strings.Contains(config.Command, "{name}") {
			return nil, errors.New(`command adapter needs a command containing "{name}"`)
		}
		return &CommandSource{Runner: runner, Template: config.Command}, nil
	case "age":
		if config.AgeFile == "" || config.AgeIdentity == "" {
			return nil, errors.New("age adapter needs age_file and age_identity")
		}
		return &AgeSource{Path: config.AgeFile, IdentityPath: config.AgeIdentity}, nil
	case "keyring":
		if config.KeyringService == "" {
			return nil, errors.New("keyring adapter needs keyring_service")
		}
		return KeyringSource{Service: config.KeyringService}, nil
	}
	if template, ok := Presets[config.Adapter]; ok {
		return &CommandSource{Runner: runner, Template: template}, nil
	}
	return nil, fmt.Errorf("unknown secrets adapter %q (want one of %s)", config.Adapter, strings.Join(Adapters(), ", "))
}
