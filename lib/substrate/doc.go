// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// Package substrate abstracts the append-only broadcast medium that
// backs the filesystem: posts, replies, and nothing else.
//
// The [Adapter] interface is the full capability contract the commit
// engine needs: publish a post (optionally as a reply), fetch a post,
// list a post's replies in chronological order. Two implementations
// ship:
//
//   - [Remote]: JSON over HTTP against a substrate gateway. Network
//     and auth details live behind the gateway.
//   - [Mock]: in-memory, deterministic ids, no latency. Same
//     observable contract, so every engine test runs against it.
//
// Retry policy lives in exactly one place: the wrapper returned by
// [WithRetry]. It classifies failures (rate limit, transient,
// permanent), applies exponential backoff bounded by the substrate's
// announced reset window, and draws every call from a shared [Budget].
// The substrate's rate limit is global per identity, so concurrent
// operations on different files compete for the same slots. Neither
// adapter implementation retries on its own, and nothing outside this
// package is allowed to retry substrate calls.
package substrate
