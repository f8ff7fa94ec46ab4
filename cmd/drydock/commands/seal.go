// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/sealed"
	"github.com/drydock-dev/drydock/lib/secret"
)

func sealCommand(a *app) *cli.Command {
	var (
		keygen     bool
		recipients []string
		output     string
	)
	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt a secrets file for the age adapter",
		Description: `Encrypt a dotenv file of secret values to one or more age recipients,
producing the file the "age" secrets adapter reads at deploy time.

With --keygen, create a new identity instead: the private key is
written to --output with mode 0600 and the public recipient printed.`,
		Usage: "drydock seal -r <recipient>... [-o out] <file>\n  drydock seal --keygen -o <identity-file>",
		Examples: []cli.Example{
			{Description: "Create an identity", Command: "drydock seal --keygen -o ~/.config/drydock/identity.txt"},
			{Description: "Seal production secrets", Command: "drydock seal -r age1... -o secrets.env.age secrets.env"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.BoolVar(&keygen, "keygen", false, "generate an identity")
			flagSet.StringArrayVarP(&recipients, "recipient", "r", nil, "age recipient (repeatable)")
			flagSet.StringVarP(&output, "output", "o", "", "output file (default <file>.age)")
			return flagSet
		},
		Run: func(args []string) error {
			if keygen {
				if len(args) > 0 || output == "" {
					return cli.Validation("--keygen needs --output and no arguments")
				}
				return a.keygen(expandPath(output))
			}
			if len(args) != 1 {
				return cli.Validation("seal needs exactly one file to encrypt")
			}
			if len(recipients) == 0 {
				return cli.Validation("seal needs at least one --recipient").
					WithHint("Create one with 'drydock seal --keygen -o identity.txt'.")
			}
			if output == "" {
				output = args[0] + ".age"
			}
			return a.seal(args[0], expandPath(output), recipients)
		},
	}
}

func (a *app) keygen(path string) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer keypair.Close()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return cli.Conflict("%w", err).WithHint("Refusing to overwrite an existing identity.")
	}
	_, writeErr := file.WriteString("# public key: " + keypair.PublicKey + "\n")
	if writeErr == nil {
		_, writeErr = file.Write(keypair.PrivateKey.Bytes())
	}
	if writeErr == nil {
		_, writeErr = file.WriteString("\n")
	}
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(path)
		return cli.Internal("writing %s: %v %v", path, writeErr, closeErr)
	}
	p := a.printer()
	p.success("wrote identity to %s", path)
	p.println(keypair.PublicKey)
	return nil
}

func (a *app) seal(input, output string, recipients []string) error {
	plaintext, err := secret.ReadFileVerbatim(input)
	if err != nil {
		return cli.NotFound("%w", err)
	}
	defer plaintext.Close()

	ciphertext, err := sealed.Encrypt(plaintext.Bytes(), recipients)
	if err != nil {
		return cli.Validation("%w", err)
	}
	if err := os.WriteFile(output, ciphertext, 0o644); err != nil {
		return cli.Internal("writing %s: %w", output, err)
	}
	a.printer().success("sealed %s to %d recipient(s) in %s", input, len(recipients), output)
	return nil
}
