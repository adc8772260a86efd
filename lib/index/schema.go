// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package index

// schema is applied to every connection via CREATE TABLE IF NOT
// EXISTS, so opening an existing catalog is a no-op. The files,
// commits, and chunks shapes are a compatibility contract with other
// readers of the database; tombstones is additive.
//
// Timestamps are Unix nanoseconds. parent_ids is a JSON array of post
// ids, queried with json_each for child lookups. Hashes are lowercase
// hex digests of the uncompressed bytes.
const schema = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	root_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
	id         TEXT PRIMARY KEY,
	parent_ids TEXT NOT NULL,
	timestamp  INTEGER NOT NULL,
	author     TEXT NOT NULL,
	hash       TEXT NOT NULL,
	mime       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	is_head    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
	id               TEXT PRIMARY KEY,
	parent_commit_id TEXT NOT NULL REFERENCES commits(id),
	idx              INTEGER NOT NULL,
	size             INTEGER NOT NULL,
	hash             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_commit ON chunks(parent_commit_id, idx);

CREATE TABLE IF NOT EXISTS tombstones (
	path       TEXT PRIMARY KEY REFERENCES files(path),
	deleted_at INTEGER NOT NULL
);
`
