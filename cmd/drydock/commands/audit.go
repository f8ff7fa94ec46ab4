// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/drydock-dev/drydock/cmd/drydock/cli"
	"github.com/drydock-dev/drydock/lib/audit"
)

func auditCommand(a *app) *cli.Command {
	var (
		limit  int
		all    bool
		asJSON bool
	)
	return &cli.Command{
		Name:    "audit",
		Summary: "Show the local log of deploys and other changes",
		Description: `List the operations this machine ran against the application, newest
first: deploys, rollbacks, prunes, scaling and teardowns.`,
		Usage: "drydock audit [--limit n] [--all] [--json]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("audit", pflag.ContinueOnError)
			flagSet.IntVarP(&limit, "limit", "n", 20, "number of records to show, 0 for all")
			flagSet.BoolVar(&all, "all", false, "include every application in the log")
			flagSet.BoolVar(&asJSON, "json", false, "print JSON lines")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("audit takes no arguments")
			}
			project, err := a.project()
			if err != nil {
				return err
			}
			if project.AuditPath == "" {
				a.printer().faint("the audit log is disabled (audit.path: off)")
				return nil
			}
			log, err := audit.Open(project.AuditPath, a.clock, a.logger())
			if err != nil {
				return cli.Internal("%w", err)
			}
			defer log.Close()

			app := project.Plan.App
			if all {
				app = ""
			}
			records, err := log.List(a.ctx, app, limit)
			if err != nil {
				return cli.Internal("%w", err)
			}

			if asJSON {
				encoder := json.NewEncoder(a.stdout)
				for _, record := range records {
					if err := encoder.Encode(record); err != nil {
						return cli.Internal("%w", err)
					}
				}
				return nil
			}
			p := a.printer()
			if len(records) == 0 {
				p.faint("no audit records in %s", project.AuditPath)
				return nil
			}
			rows := make([][]string, len(records))
			for i, record := range records {
				rows[i] = []string{
					record.Timestamp.Local().Format(time.DateTime),
					record.Operation,
					record.App,
					record.Version,
					record.Outcome,
					record.User,
					record.Host,
				}
			}
			p.table([]string{"TIME", "OPERATION", "APP", "VERSION", "OUTCOME", "USER", "HOST"}, rows,
				func(row int) bool { return records[row].Outcome != "success" })
			if limit > 0 && len(records) == limit {
				p.faint("showing the newest %s records; pass --limit 0 for all", strconv.Itoa(limit))
			}
			return nil
		},
	}
}
