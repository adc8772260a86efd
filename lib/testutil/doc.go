// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for xfiles packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. These are the only place
// in the test suite where real wall-clock timeouts appear; everything
// else runs on lib/clock's fake clock.
//
// [UniquePath] generates monotonically increasing file paths for test
// disambiguation in catalogs shared across subtests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no xfiles-internal dependencies.
package testutil
