// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding for xfiles wire
// structures.
//
// Root posts and commit announcements carry a small binary header (see
// lib/xfs payload framing) that must encode identically regardless of
// which process produced it: the reply chain on the remote substrate
// is the durable record, and two writers describing the same commit
// must produce the same bytes. CBOR Core Deterministic Encoding
// (RFC 8949 §4.2) gives that guarantee; JSON does not (map ordering,
// float formatting).
//
// Consumers import only this package, never fxamacker/cbor directly,
// so the encoding options stay in one place.
package codec
