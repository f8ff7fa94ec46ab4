// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/version"
)

func versionCommand(a *app) *cli.Command {
	var short bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print the drydock version",
		Usage:   "drydock version [--short]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&short, "short", false, "print only the version number")
			return flagSet
		},
		Run: func(args []string) error {
			build := version.Current()
			p := a.printer()
			if short {
				p.println(build.Version)
				return nil
			}
			p.println("drydock " + build.Full())
			return nil
		},
	}
}
