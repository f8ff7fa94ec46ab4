// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit keeps a local log of the operations drydock performed:
// who deployed what to which host, and how it ended.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/drydock-dev/drydock/lib/clock"
	"github.com/drydock-dev/drydock/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	operation TEXT NOT NULL,
	user      TEXT NOT NULL,
	host      TEXT NOT NULL,
	app       TEXT NOT NULL,
	version   TEXT NOT NULL DEFAULT '',
	outcome   TEXT NOT NULL,
	details   TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS operations_app_timestamp ON operations (app, timestamp);
`

// Record is one audited operation.
type Record struct {
	ID        int64
	Timestamp time.Time
	Operation string
	User      string
	Host      string
	App       string
	Version   string
	Outcome   string
	Details   map[string]any
}

// Log is an audit log backed by a SQLite file.
type Log struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

// Open opens or creates the log at path.
func Open(path string, clk clock.Clock, logger *slog.Logger) (*Log, error) {
	if clk == nil {
		clk = clock.Real()
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{Path: path, Schema: schema, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return &Log{pool: pool, clock: clk}, nil
}

// Close closes the database.
func (l *Log) Close() error { return l.pool.Close() }

// Record appends record. A zero Timestamp is set to now.
func (l *Log) Record(ctx context.Context, record Record) (err error) {
	if record.Timestamp.IsZero() {
		record.Timestamp = l.clock.Now()
	}
	details := []byte("{}")
	if len(record.Details) > 0 {
		details, err = json.Marshal(record.Details)
		if err != nil {
			return fmt.Errorf("audit: encoding details: %w", err)
		}
	}

	conn, err := l.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	defer l.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO operations (timestamp, operation, user, host, app, version, outcome, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			record.Timestamp.UnixNano(),
			record.Operation,
			record.User,
			record.Host,
			record.App,
			record.Version,
			record.Outcome,
			string(details),
		},
	})
	if err != nil {
		return fmt.Errorf("audit: recording %s: %w", record.Operation, err)
	}
	return nil
}

// List returns up to limit records, newest first. app filters by
// application when non-empty. limit <= 0 means no limit.
func (l *Log) List(ctx context.Context, app string, limit int) ([]Record, error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	defer l.pool.Put(conn)

	if limit <= 0 {
		limit = -1
	}
	var records []Record
	err = sqlitex.Execute(conn, `
		SELECT id, timestamp, operation, user, host, app, version, outcome, details
		FROM operations
		WHERE ? = '' OR app = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, &sqlitex.ExecOptions{
		Args: []any{app, app, limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record := Record{
				ID:        stmt.ColumnInt64(0),
				Timestamp: time.Unix(0, stmt.ColumnInt64(1)).UTC(),
				Operation: stmt.ColumnText(2),
				User:      stmt.ColumnText(3),
				Host:      stmt.ColumnText(4),
				App:       stmt.ColumnText(5),
				Version:   stmt.ColumnText(6),
				Outcome:   stmt.ColumnText(7),
			}
			if details := stmt.ColumnText(8); details != "" && details != "{}" {
				if err := json.Unmarshal([]byte(details), &record.Details); err != nil {
					return fmt.Errorf("decoding details of record %d: %w", record.ID, err)
				}
			}
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("audit: listing: %w", err)
	}
	return records, nil
}
