// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the small SQLite databases drydock keeps on
// the operator's machine, such as the audit log.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection
// gets the same pragmas:
//
//   - journal_mode=WAL, so a second drydock process reading the audit
//     log does not block a deploy writing to it.
//   - synchronous=NORMAL.
//   - busy_timeout=5000, so concurrent writers wait instead of failing
//     with SQLITE_BUSY.
//   - temp_store=MEMORY.
//
// A schema passed in [Config].Schema runs once per connection, before
// [Config].OnConnect. It must be idempotent (CREATE ... IF NOT EXISTS).
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   auditPath,
//	    Schema: schema,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
package sqlitepool
