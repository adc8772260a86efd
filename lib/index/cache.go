// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"sync"

	"github.com/cryptopatrick/xfiles/lib/substrate"
)

// Cache is an in-memory content cache keyed by commit id. Commits are
// immutable, so cached content never needs invalidation; entries are
// only evicted wholesale via Clear.
//
// Both Put and Get copy, so callers may reuse or mutate their buffers
// freely. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	content map[substrate.PostID][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{content: make(map[substrate.PostID][]byte)}
}

// Get returns the cached content for a commit and whether it was
// present.
func (c *Cache) Get(commitID substrate.PostID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.content[commitID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, true
}

// Put stores content for a commit.
func (c *Cache) Put(commitID substrate.PostID, content []byte) {
	stored := make([]byte, len(content))
	copy(stored, content)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content[commitID] = stored
}

// Len returns the number of cached commits.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.content)
}

// Clear drops all cached content.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = make(map[substrate.PostID][]byte)
}
