// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/drydock-dev/drydock/lib/sqlitepool"
)

const schema = `CREATE TABLE IF NOT EXISTS records (value TEXT NOT NULL);`

func open(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func pragma(t *testing.T, conn *sqlite.Conn, name string) string {
	t.Helper()
	var value string
	err := sqlitex.Execute(conn, "PRAGMA "+name, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA %s: %v", name, err)
	}
	return value
}

func TestOpenCreatesDirectoryAndAppliesPragmas(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "state", "drydock")
	pool := open(t, sqlitepool.Config{Path: filepath.Join(dir, "audit.db"), Schema: schema})

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("directory mode = %v, want 0700", info.Mode().Perm())
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if mode := pragma(t, conn, "journal_mode"); mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	if timeout := pragma(t, conn, "busy_timeout"); timeout != "5000" {
		t.Errorf("busy_timeout = %q, want 5000", timeout)
	}
	if err := sqlitex.Execute(conn, "INSERT INTO records (value) VALUES (?)", &sqlitex.ExecOptions{Args: []any{"hello"}}); err != nil {
		t.Errorf("schema not applied: %v", err)
	}
}

func TestSchemaSharedAcrossConnections(t *testing.T) {
	t.Parallel()
	pool := open(t, sqlitepool.Config{Path: filepath.Join(t.TempDir(), "test.db"), Schema: schema})

	// Holding the first connection forces the second Take to open a
	// new one, which runs the schema again.
	first, err := pool.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Put(first)
	second, err := pool.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Put(second)

	if err := sqlitex.Execute(first, "INSERT INTO records (value) VALUES ('a')", nil); err != nil {
		t.Fatal(err)
	}
	var count int
	err = sqlitex.Execute(second, "SELECT count(*) FROM records", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil || count != 1 {
		t.Errorf("count = %d, err %v", count, err)
	}
}

func TestOnConnectError(t *testing.T) {
	t.Parallel()
	refused := errors.New("refused")
	pool := open(t, sqlitepool.Config{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		OnConnect: func(*sqlite.Conn) error { return refused },
	})

	if _, err := pool.Take(context.Background()); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("Take error = %v, want the OnConnect error", err)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	t.Parallel()
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestTakeHonorsContext(t *testing.T) {
	t.Parallel()
	pool := open(t, sqlitepool.Config{Path: filepath.Join(t.TempDir(), "cancel.db"), PoolSize: 1})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
