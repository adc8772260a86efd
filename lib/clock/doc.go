// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides a minimal time abstraction with a real and a
// fake implementation.
//
// The retry wrapper and the shared rate budget both wait on wall-clock
// deadlines (backoff intervals, rate-limit reset windows). Testing
// those paths against the real clock would mean multi-second test runs
// and flaky timing assertions. Instead, everything that touches time
// takes a [Clock]; tests inject a [FakeClock] and drive it with
// [FakeClock.Advance].
//
// This package depends on no other xfiles packages.
package clock
