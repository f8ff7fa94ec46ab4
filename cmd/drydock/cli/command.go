// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the command tree.
type Command struct {
	// Name is what the user types, e.g. "rollback".
	Name string

	// Summary is the one-line description in the parent's listing.
	Summary string

	// Description is shown at the top of the command's own help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags returns the command's flag set. It is called on every parse
	// and every help rendering, so it must bind to variables owned by
	// the caller rather than allocate them.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	// With Subcommands set, Run handles invocations that name no
	// subcommand.
	Run func(args []string) error

	// Output receives help text. Nil means os.Stderr.
	Output io.Writer

	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	Description string
	Command     string
}

func (c *Command) output() io.Writer {
	for node := c; node != nil; node = node.parent {
		if node.Output != nil {
			return node.Output
		}
	}
	return os.Stderr
}

// Execute parses args and runs the matching command.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.output())
		return nil
	}

	if len(c.Subcommands) > 0 {
		// Flags on a command with subcommands apply to the whole tree
		// and stop at the first positional argument.
		if c.Flags != nil {
			remaining, err := c.parseFlags(args, false)
			if err != nil {
				return err
			}
			args = remaining
		}
		if len(args) > 0 {
			if isHelpFlag(args[0]) {
				c.PrintHelp(c.output())
				return nil
			}
			name := args[0]
			for _, sub := range c.Subcommands {
				if sub.Name == name {
					sub.parent = c
					return sub.Execute(args[1:])
				}
			}
			if c.Run == nil {
				if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
					return Validation("unknown command %q (did you mean %q?)", name, suggestion).
						WithHint(fmt.Sprintf("Run '%s --help' for usage.", c.fullName()))
				}
				return Validation("unknown command %q", name).
					WithHint(fmt.Sprintf("Run '%s --help' for usage.", c.fullName()))
			}
		}
		if c.Run == nil {
			c.PrintHelp(c.output())
			return &ExitError{Code: 1}
		}
		return c.Run(args)
	}

	if c.Flags != nil {
		remaining, err := c.parseFlags(args, true)
		if err != nil {
			return err
		}
		args = remaining
	}
	if c.Run == nil {
		c.PrintHelp(c.output())
		return Internal("no action defined for %q", c.fullName())
	}
	return c.Run(args)
}

// parseFlags parses args against c's flag set and returns the
// positional arguments. Parse errors become validation errors, with a
// suggestion when the flag looks like a typo.
func (c *Command) parseFlags(args []string, interspersed bool) ([]string, error) {
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	flagSet.SetInterspersed(interspersed)
	if err := flagSet.Parse(args); err != nil {
		usage := fmt.Sprintf("Run '%s --help' for usage.", c.fullName())
		if err == pflag.ErrHelp {
			c.PrintHelp(c.output())
			return nil, &ExitError{Code: 0}
		}
		message := err.Error()
		if strings.Contains(message, "unknown") {
			// The failed parse may have left partial state behind.
			if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
				return nil, Validation("%s (did you mean %s?)", message, suggestion).WithHint(usage)
			}
		}
		return nil, Validation("%s", message).WithHint(usage)
	}
	return flagSet.Args(), nil
}

// PrintHelp writes c's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	if c.Description != "" {
		fmt.Fprintf(w, "%s\n\n", c.Description)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s [flags] <command>\n", name)
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		if usages := c.Flags().FlagUsages(); usages != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usages)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName is the command path, e.g. "drydock rollback".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
