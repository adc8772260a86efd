// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package index is the local SQLite catalog of files, commits, and
// chunks. It is a directory service and version catalog for state that
// already exists on the remote substrate: every row corresponds to a
// post that was successfully published, and rows are written only
// after the corresponding posts are confirmed.
//
// The schema is fixed for compatibility with other readers of the same
// database: files(path, root_id, created_at), commits(id, parent_ids,
// timestamp, author, hash, mime, size, is_head), chunks(id,
// parent_commit_id, idx, size, hash). Deletion is a tombstone in a
// separate table; file and commit rows are never removed, matching the
// append-only substrate underneath.
//
// [Catalog] methods that mutate more than one row (PutCommit) run in a
// single IMMEDIATE transaction so a crash mid-write never leaves a
// file with zero or two heads.
package index
