// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/unit"
	"github.com/drydock-dev/drydock/lib/webserver"
)

func unitsCommand(a *app) *cli.Command {
	var names bool
	return &cli.Command{
		Name:    "units",
		Summary: "Print the systemd units a deploy would install",
		Description: `Compile the configured processes into systemd unit files, with operator
drop-ins merged, and print them. The webserver site file is printed
too when the webserver is enabled. Nothing is contacted.`,
		Usage: "drydock units [--names]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("units", pflag.ContinueOnError)
			flagSet.BoolVar(&names, "names", false, "print only the file names")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("units takes no arguments")
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			plan := project.Plan
			unitContext := plan.UnitContext(project.Host.Layout(plan.App))
			units, err := unit.Compile(unitContext, plan.Processes)
			if err != nil {
				return configError(err)
			}
			var site string
			if plan.Site != nil {
				if site, err = webserver.Render(*plan.Site, unitContext, plan.Processes); err != nil {
					return configError(err)
				}
			}

			p := a.printer()
			if names {
				for _, file := range units {
					p.println(file.Name)
				}
				if site != "" {
					p.println(caddyPath(plan.CaddyConfigPath, plan.App))
				}
				return nil
			}
			for i, file := range units {
				if i > 0 {
					p.println("")
				}
				p.println(p.bold(p.theme.Accent).Render("# " + file.Name))
				if err := p.highlight(file.Body, "ini"); err != nil {
					return cli.Internal("highlighting %s: %w", file.Name, err)
				}
			}
			if site != "" {
				p.println("")
				p.println(p.bold(p.theme.Accent).Render("# " + caddyPath(plan.CaddyConfigPath, plan.App)))
				if err := p.highlight(site, "caddyfile"); err != nil {
					return cli.Internal("highlighting site file: %w", err)
				}
			}
			return nil
		},
	}
}

func caddyPath(configured, app string) string {
	if configured != "" {
		return configured
	}
	return webserver.ConfigPath(app)
}

// highlight prints source with syntax colors, or verbatim without color.
func (p *printer) highlight(source, lexer string) error {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	if !p.color {
		_, err := fmt.Fprint(p.w, source)
		return err
	}
	return quick.Highlight(p.w, source, lexer, "terminal256", "monokai")
}
