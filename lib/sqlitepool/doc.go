// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool backing the
// local catalog.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode, NORMAL synchronous for process-crash durability
// without fsync-per-commit overhead, busy timeout to handle write
// contention gracefully, and foreign keys ON because chunk rows
// reference commit rows.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use; each goroutine must hold its own connection for the
// duration of its work.
//
// # Durability note
//
// synchronous=NORMAL means a committed catalog transaction survives a
// process crash but not necessarily an OS crash or power loss. That is
// the right trade here: the remote reply chain is the source of truth,
// and a catalog transaction only ever records posts that already
// succeeded remotely. Losing the tail of the catalog loses an index
// entry, never data.
//
// # Design
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. The catalog writes
// SQL, uses sqlitex.Execute for cached statements, and manages
// transactions with sqlitex.ImmediateTransaction. There is no query
// builder and no abstraction layer fighting SQLite's strengths.
package sqlitepool
