// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunk implements content addressing and size-bounded
// splitting for the commit engine.
//
// Both halves are pure functions with no I/O and no dependencies on
// the rest of the module:
//
//   - Fingerprinting: BLAKE3 digests ([Fingerprint], [Digest]) used
//     for commit content hashes and per-chunk hashes. The read path
//     verifies every reconstruction against the commit's recorded
//     digest before returning bytes.
//
//   - Splitting: [Split] divides content into fixed-size chunks that
//     fit the substrate's per-post byte cap; [Join] reverses it. The
//     round-trip law Join(Split(x, n)) == x holds for every input and
//     every positive limit.
package chunk
