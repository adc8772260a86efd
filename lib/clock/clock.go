// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts time operations for testability. Production code
// injects Real(); tests inject Fake() with deterministic time control.
//
// Every function that calls time.Now, time.After, or time.Sleep should
// accept a Clock parameter (or be a method on a struct with a Clock
// field) instead of calling the time package directly. Retry backoff
// and rate-budget accounting both depend on this: their tests advance
// a fake clock instead of sleeping through real backoff windows.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	// Equivalent to time.Sleep.
	Sleep(d time.Duration)
}
