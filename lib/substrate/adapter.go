// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"context"
	"time"
)

// PostID identifies a single post on the broadcast substrate. IDs are
// opaque: the engine never parses them, only stores and compares them.
// The zero value ("") means "no post" and is used as the reply target
// for top-level posts.
type PostID string

// IsZero reports whether the id is the zero value.
func (id PostID) IsZero() bool { return id == "" }

// Post is one broadcast unit as returned by [Adapter.Get].
type Post struct {
	// ID is the post's substrate-assigned identifier.
	ID PostID

	// Author is the substrate identity that created the post.
	Author string

	// Content is the post's payload bytes.
	Content []byte

	// CreatedAt is the substrate's timestamp for the post.
	CreatedAt time.Time

	// ReplyTo is the post this one replies to, or zero for a
	// top-level post.
	ReplyTo PostID
}

// Adapter is the capability contract the commit engine needs from the
// broadcast substrate. Two implementations exist: [Remote] (HTTP,
// network-backed) and [Mock] (in-memory, deterministic). The engine
// must never special-case which variant it holds: anything that works
// against one must work identically against the other.
//
// All methods block until the substrate responds and honor context
// cancellation. None of them retry; retry and rate-budget discipline
// live exclusively in the wrapper returned by [WithRetry].
type Adapter interface {
	// Post publishes content, optionally as a reply to replyTo (zero
	// PostID means top-level), and returns the new post's id. Posts
	// are append-only: once published, a post can never be edited or
	// retracted.
	Post(ctx context.Context, content []byte, replyTo PostID) (PostID, error)

	// Get fetches a post by id.
	Get(ctx context.Context, id PostID) (*Post, error)

	// GetReplies returns the ids of all direct replies to id, in
	// chronological order (oldest first). Chronological ordering is
	// load-bearing: the read path reconstructs chunk order from it
	// when rebuilding from the substrate alone.
	GetReplies(ctx context.Context, id PostID) ([]PostID, error)
}
