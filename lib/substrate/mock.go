// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryptopatrick/xfiles/lib/clock"
)

// Mock is an in-memory Adapter with the same observable contract as
// [Remote]: ids are assigned in publish order, replies come back in
// chronological order, posts are immutable once published. Ids are
// deterministic ("post-1", "post-2", ...) so tests can assert on them
// directly.
//
// Mock is safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	clock   clock.Clock
	author  string
	nextID  int
	posts   map[PostID]*Post
	order   []PostID // publish order, backs chronological reply listing
	faults  []error  // queued Post faults, consumed one per call
	nPosts  int      // total Post calls, including faulted ones
	maxSize int      // per-post content cap; 0 = unenforced
}

// NewMock returns an empty Mock whose post timestamps come from clk
// and whose posts are attributed to author.
func NewMock(clk clock.Clock, author string) *Mock {
	return &Mock{
		clock:  clk,
		author: author,
		posts:  make(map[PostID]*Post),
	}
}

// SetMaxPostSize makes Post reject content larger than n bytes with
// CodeTooLarge, mimicking the real substrate's per-post cap. Zero
// disables the check (the default).
func (m *Mock) SetMaxPostSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSize = n
}

// InjectPostError queues err to be returned by the next Post call
// instead of publishing. Multiple queued errors are consumed in FIFO
// order. Used to exercise the retry wrapper: queue N rate-limit errors
// and the N+1th Post succeeds.
func (m *Mock) InjectPostError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, err)
}

// PostCalls returns the total number of Post calls made, including
// calls that consumed an injected fault. Used by tests asserting on
// retry attempt counts.
func (m *Mock) PostCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nPosts
}

// CorruptPost replaces the stored content of an existing post. Only
// for tests: the real substrate is append-only and immutable, but
// integrity-check tests need a way to make reconstruction disagree
// with the recorded content hash.
func (m *Mock) CorruptPost(id PostID, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return &Error{Code: CodeNotFound, Message: fmt.Sprintf("post %s not found", id)}
	}
	post.Content = append([]byte(nil), content...)
	return nil
}

// Post implements [Adapter].
func (m *Mock) Post(ctx context.Context, content []byte, replyTo PostID) (PostID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nPosts++
	if len(m.faults) > 0 {
		err := m.faults[0]
		m.faults = m.faults[1:]
		return "", err
	}

	if m.maxSize > 0 && len(content) > m.maxSize {
		return "", &Error{
			Code:    CodeTooLarge,
			Message: fmt.Sprintf("content is %d bytes, cap is %d", len(content), m.maxSize),
		}
	}

	if !replyTo.IsZero() {
		if _, ok := m.posts[replyTo]; !ok {
			return "", &Error{Code: CodeNotFound, Message: fmt.Sprintf("reply target %s not found", replyTo)}
		}
	}

	m.nextID++
	id := PostID(fmt.Sprintf("post-%d", m.nextID))
	m.posts[id] = &Post{
		ID:        id,
		Author:    m.author,
		Content:   append([]byte(nil), content...),
		CreatedAt: m.clock.Now(),
		ReplyTo:   replyTo,
	}
	m.order = append(m.order, id)
	return id, nil
}

// Get implements [Adapter].
func (m *Mock) Get(ctx context.Context, id PostID) (*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[id]
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("post %s not found", id)}
	}

	// Copy so callers cannot mutate the stored post.
	copied := *post
	copied.Content = append([]byte(nil), post.Content...)
	return &copied, nil
}

// GetReplies implements [Adapter]. Replies come back in publish order,
// which is chronological order since the mock assigns ids serially.
func (m *Mock) GetReplies(ctx context.Context, id PostID) ([]PostID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("post %s not found", id)}
	}

	var replies []PostID
	for _, candidate := range m.order {
		if m.posts[candidate].ReplyTo == id {
			replies = append(replies, candidate)
		}
	}
	return replies, nil
}
