// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a substrate error for retry policy decisions.
type Code string

const (
	// CodeNotFound means the requested post does not exist. Never
	// retried.
	CodeNotFound Code = "NOT_FOUND"

	// CodeAuth means the substrate rejected the caller's credentials
	// or permissions. Never retried; repeating the call cannot
	// succeed until the operator fixes the credential.
	CodeAuth Code = "AUTH"

	// CodeRateLimited means the substrate's global call budget is
	// exhausted. Retried with backoff bounded by the reset window.
	CodeRateLimited Code = "RATE_LIMITED"

	// CodeUnavailable means a transient server-side failure (5xx).
	// Retried a bounded number of times.
	CodeUnavailable Code = "UNAVAILABLE"

	// CodeTooLarge means the post content exceeds the substrate's
	// per-post size cap. Never retried; the caller must re-chunk.
	CodeTooLarge Code = "CONTENT_TOO_LARGE"
)

// Error is a structured error from the substrate. Callers use
// errors.As to extract it:
//
//	var substrateErr *substrate.Error
//	if errors.As(err, &substrateErr) {
//	    if substrateErr.Code == substrate.CodeRateLimited { ... }
//	}
//
// Transport-level failures (connection refused, timeout, EOF) are NOT
// wrapped in Error; they surface as the underlying error and the retry
// wrapper treats them as transient.
type Error struct {
	// Code is the error classification.
	Code Code

	// StatusCode is the HTTP status of the response, if the error
	// came from the Remote adapter. Zero for Mock errors.
	StatusCode int

	// Message is the human-readable description from the substrate.
	Message string

	// RetryAfter is how long the substrate asked the caller to wait
	// before retrying, if it said (rate-limit responses usually do).
	// Zero when unknown.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("substrate: %s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("substrate: %s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code Code) bool {
	var substrateErr *Error
	if errors.As(err, &substrateErr) {
		return substrateErr.Code == code
	}
	return false
}
