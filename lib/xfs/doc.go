// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package xfs is the commit/version engine of the versioned
// filesystem: files are posts on an append-only broadcast substrate,
// version history is a reply chain, and a local SQLite catalog serves
// every traversal that does not need remote bytes.
//
// A file begins as a root post. Each write fingerprints the content,
// frames it with a self-describing header, splits the framed bytes
// into substrate-sized chunks, and publishes them as a causal reply
// chain: chunk 0 replies to the current head, each later chunk replies
// to its predecessor. The first chunk's post id is the commit id. Only
// after every post is confirmed does the catalog record the commit,
// flip the head, and warm the read cache, atomically.
//
// Reads run the pipeline backward, verifying both per-chunk hashes and
// the full content fingerprint; a mismatch is a KindIntegrity error,
// never silently wrong bytes. Deletes are local tombstones: the
// substrate cannot retract posts.
//
// A write that fails mid-chain leaves orphaned posts remotely and
// nothing locally; retrying publishes fresh posts rather than resuming
// the old chain. Concurrent writers in separate processes are not
// coordinated and can fork a file's chain; the engine reports such a
// fork as KindCorruptIndex instead of guessing a merge.
package xfs
