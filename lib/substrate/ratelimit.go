// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"context"
	"sync"
	"time"

	"github.com/cryptopatrick/xfiles/lib/clock"
)

// Budget is a shared sliding-window rate budget for substrate calls.
// The substrate's limit is global per identity, not per file, so one
// Budget is shared by every adapter call site of an engine instance;
// it is explicit shared state passed in at construction, never a
// package-level global.
//
// Acquire blocks until a call slot is available. The window is
// sliding: a slot frees exactly one window after the call that
// consumed it.
//
// Budget is safe for concurrent use.
type Budget struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  clock.Clock
	calls  []time.Time // acquisition times, oldest first
}

// NewBudget returns a Budget allowing limit calls per window. Panics
// if limit <= 0 or window <= 0: both come from validated
// configuration.
func NewBudget(limit int, window time.Duration, clk clock.Clock) *Budget {
	if limit <= 0 {
		panic("substrate: NewBudget called with non-positive limit")
	}
	if window <= 0 {
		panic("substrate: NewBudget called with non-positive window")
	}
	return &Budget{limit: limit, window: window, clock: clk}
}

// Acquire blocks until a call slot is free, records the call, and
// returns. Returns early with ctx.Err() if the context is cancelled
// while waiting. Waiters are not queued fairly: when a slot frees,
// whichever waiter wakes first takes it.
func (b *Budget) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.clock.Now()
		b.pruneLocked(now)

		if len(b.calls) < b.limit {
			b.calls = append(b.calls, now)
			b.mu.Unlock()
			return nil
		}

		// Window full: the oldest recorded call frees its slot at
		// oldest+window.
		wait := b.calls[0].Add(b.window).Sub(now)
		b.mu.Unlock()

		select {
		case <-b.clock.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// InFlight returns how many call slots are currently consumed. Used by
// tests asserting budget sharing across handles.
func (b *Budget) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(b.clock.Now())
	return len(b.calls)
}

// pruneLocked drops call records older than one window. Caller holds
// b.mu.
func (b *Budget) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.calls) && !b.calls[i].After(cutoff) {
		i++
	}
	b.calls = b.calls[i:]
}
