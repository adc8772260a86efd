// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"context"
	"testing"
	"time"

	"github.com/cryptopatrick/xfiles/lib/clock"
	"github.com/cryptopatrick/xfiles/lib/testutil"
)

func TestBudgetAllowsUpToLimit(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	budget := NewBudget(3, time.Minute, fakeClock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := budget.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if got := budget.InFlight(); got != 3 {
		t.Errorf("InFlight = %d, want 3", got)
	}
}

func TestBudgetBlocksWhenExhausted(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	budget := NewBudget(2, time.Minute, fakeClock)
	ctx := context.Background()

	if err := budget.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	fakeClock.Advance(10 * time.Second)
	if err := budget.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		acquired <- budget.Acquire(ctx)
	}()

	// The third acquire must wait for the first slot to free, which
	// happens one window after the first call.
	fakeClock.WaitForWaiters(1)
	select {
	case <-acquired:
		t.Fatal("Acquire returned while budget was exhausted")
	default:
	}

	fakeClock.Advance(50 * time.Second)
	if err := testutil.RequireReceive(t, acquired, 5*time.Second, "waiting for freed slot"); err != nil {
		t.Fatalf("Acquire after window: %v", err)
	}
}

func TestBudgetWindowSlides(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	budget := NewBudget(1, time.Minute, fakeClock)
	ctx := context.Background()

	if err := budget.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	fakeClock.Advance(time.Minute)
	if got := budget.InFlight(); got != 0 {
		t.Errorf("InFlight after window = %d, want 0", got)
	}
	if err := budget.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after window: %v", err)
	}
}

func TestBudgetAcquireHonorsCancellation(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	budget := NewBudget(1, time.Minute, fakeClock)

	if err := budget.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	acquired := make(chan error, 1)
	go func() {
		acquired <- budget.Acquire(ctx)
	}()

	fakeClock.WaitForWaiters(1)
	cancel()

	err := testutil.RequireReceive(t, acquired, 5*time.Second, "waiting for cancelled Acquire")
	if err != context.Canceled {
		t.Errorf("cancelled Acquire = %v, want context.Canceled", err)
	}
}

func TestBudgetSharedAcrossCallers(t *testing.T) {
	fakeClock := clock.Fake(testEpoch)
	budget := NewBudget(4, time.Minute, fakeClock)
	ctx := context.Background()

	// Two "handles" drawing from the same budget together exhaust it
	// at the shared limit, not at a per-caller limit.
	for caller := 0; caller < 2; caller++ {
		for i := 0; i < 2; i++ {
			if err := budget.Acquire(ctx); err != nil {
				t.Fatalf("caller %d Acquire %d: %v", caller, i, err)
			}
		}
	}
	if got := budget.InFlight(); got != 4 {
		t.Errorf("InFlight = %d, want 4", got)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- budget.Acquire(ctx)
	}()
	fakeClock.WaitForWaiters(1)
	select {
	case <-blocked:
		t.Fatal("fifth Acquire succeeded with a shared budget of 4")
	default:
	}
	fakeClock.Advance(time.Minute)
	if err := testutil.RequireReceive(t, blocked, 5*time.Second, "waiting for slot"); err != nil {
		t.Fatalf("Acquire after window: %v", err)
	}
}
