// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniquePath returns a file path of the form "prefix-N.txt" where N is
// a monotonically increasing integer. Use this instead of time.Now()
// when tests need paths that must not collide in a shared catalog.
//
//	path := testutil.UniquePath("notes") // "notes-1.txt", "notes-2.txt", ...
func UniquePath(prefix string) string {
	return fmt.Sprintf("%s-%d.txt", prefix, uniqueCounter.Add(1))
}
