// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package xfs

import (
	"errors"
	"fmt"

	"github.com/cryptopatrick/xfiles/lib/index"
	"github.com/cryptopatrick/xfiles/lib/substrate"
)

// Kind classifies an engine error for machine-readable handling.
type Kind int

const (
	// KindNotFound: the path or commit does not exist.
	KindNotFound Kind = iota + 1

	// KindAlreadyExists: creating a path that is already registered.
	KindAlreadyExists

	// KindRateLimited: the substrate's rate limit persisted through the
	// entire retry budget.
	KindRateLimited

	// KindNetwork: a transient transport failure persisted through the
	// retry budget.
	KindNetwork

	// KindAuth: the substrate rejected the caller's identity. Never
	// retried.
	KindAuth

	// KindIntegrity: reconstructed content does not match the recorded
	// hash. The remote bytes or the recorded hash are wrong; neither is
	// silently trusted.
	KindIntegrity

	// KindCorruptIndex: the local catalog's rows are internally
	// inconsistent (chunk index gaps, forked chains, dangling
	// references).
	KindCorruptIndex
)

// String returns the kind's name for logs and error text.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindRateLimited:
		return "rate limited"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindIntegrity:
		return "integrity"
	case KindCorruptIndex:
		return "corrupt index"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed error surface of the engine. Op names the failed
// operation ("write", "read", "open", ...), Path the file involved
// (may be empty for commit-addressed operations).
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("xfs: %s", e.Op)
	if e.Path != "" {
		msg += fmt.Sprintf(" %q", e.Path)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	var engineErr *Error
	return errors.As(err, &engineErr) && engineErr.Kind == kind
}

// wrapSubstrate converts an error from the (retry-wrapped) adapter
// into an engine error. Substrate codes map one-to-one onto kinds;
// anything else is a transport-class failure.
func wrapSubstrate(op, path string, err error) error {
	kind := KindNetwork
	var substrateErr *substrate.Error
	if errors.As(err, &substrateErr) {
		switch substrateErr.Code {
		case substrate.CodeNotFound:
			kind = KindNotFound
		case substrate.CodeAuth:
			kind = KindAuth
		case substrate.CodeRateLimited:
			kind = KindRateLimited
		}
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// wrapIndex converts a catalog error into an engine error. Catalog
// errors that are not part of the taxonomy (I/O failures and the like)
// pass through wrapped but untyped.
func wrapIndex(op, path string, err error) error {
	switch {
	case errors.Is(err, index.ErrNotFound):
		return &Error{Kind: KindNotFound, Op: op, Path: path, Err: err}
	case errors.Is(err, index.ErrAlreadyExists):
		return &Error{Kind: KindAlreadyExists, Op: op, Path: path, Err: err}
	case errors.Is(err, index.ErrCorrupt):
		return &Error{Kind: KindCorruptIndex, Op: op, Path: path, Err: err}
	default:
		return fmt.Errorf("xfs: %s %q: %w", op, path, err)
	}
}
