// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package xfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cryptopatrick/xfiles/lib/clock"
	"github.com/cryptopatrick/xfiles/lib/index"
	"github.com/cryptopatrick/xfiles/lib/substrate"
)

// DefaultMaxPayloadSize is the substrate's per-post size limit applied
// when Config.MaxPayloadSize is zero.
const DefaultMaxPayloadSize = 280

// DefaultMIME is recorded for commits written without an explicit
// content type.
const DefaultMIME = "application/octet-stream"

// Default rate budget: calls allowed per sliding window, shared across
// every adapter call the engine makes.
const (
	DefaultBudgetCalls  = 50
	DefaultBudgetWindow = 15 * time.Minute
)

// Mode selects the open behavior.
type Mode int

const (
	// ModeOpen opens an existing file; fails with KindNotFound if the
	// path is absent.
	ModeOpen Mode = iota

	// ModeCreate publishes a root post and registers a new file; fails
	// with KindAlreadyExists if the path is taken.
	ModeCreate
)

// Config holds the parameters for constructing a filesystem instance.
type Config struct {
	// Catalog is the local index. Required; the caller owns its
	// lifecycle.
	Catalog *index.Catalog

	// Adapter is the raw substrate adapter. Required. The engine wraps
	// it with the retry policy itself; pass the unwrapped adapter.
	Adapter substrate.Adapter

	// Author is recorded on every commit this instance publishes.
	// Required.
	Author string

	// MaxPayloadSize is the substrate's per-post size limit in bytes.
	// Defaults to DefaultMaxPayloadSize.
	MaxPayloadSize int

	// Retry configures the retry wrapper. Zero values take the policy
	// defaults.
	Retry substrate.RetryConfig

	// BudgetCalls and BudgetWindow configure the shared rate budget.
	// Defaults to DefaultBudgetCalls per DefaultBudgetWindow.
	BudgetCalls  int
	BudgetWindow time.Duration

	// Compress enables transparent zstd compression of commit content.
	// Reads always handle both compressed and raw commits; the flag
	// only affects writes.
	Compress bool

	// Clock provides commit timestamps and retry backoff waits.
	// Defaults to the real clock.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// FS is the commit/version engine: a versioned filesystem whose files
// are substrate posts, whose version history is a reply chain, and
// whose fast path is the local catalog.
//
// All adapter calls from one FS instance draw from a single shared
// rate budget. Safe for concurrent use; operations on one [File]
// handle are serialized by the handle.
type FS struct {
	catalog  *index.Catalog
	cache    *index.Cache
	adapter  substrate.Adapter
	author   string
	maxSize  int
	compress bool
	clk      clock.Clock
	logger   *slog.Logger

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New constructs a filesystem instance over a catalog and a substrate
// adapter.
func New(cfg Config) (*FS, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("xfs: Catalog is required")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("xfs: Adapter is required")
	}
	if cfg.Author == "" {
		return nil, fmt.Errorf("xfs: Author is required")
	}

	maxSize := cfg.MaxPayloadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadSize
	}
	budgetCalls := cfg.BudgetCalls
	if budgetCalls <= 0 {
		budgetCalls = DefaultBudgetCalls
	}
	budgetWindow := cfg.BudgetWindow
	if budgetWindow <= 0 {
		budgetWindow = DefaultBudgetWindow
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("xfs: zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("xfs: zstd decoder: %w", err)
	}

	budget := substrate.NewBudget(budgetCalls, budgetWindow, clk)

	return &FS{
		catalog:  cfg.Catalog,
		cache:    index.NewCache(),
		adapter:  substrate.WithRetry(cfg.Adapter, cfg.Retry, budget, clk, logger),
		author:   cfg.Author,
		maxSize:  maxSize,
		compress: cfg.Compress,
		clk:      clk,
		logger:   logger,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Open returns a handle on the file at path. With ModeCreate, the root
// post is published first and the file is registered only after the
// substrate confirms it; with ModeOpen, no remote call is made.
func (fs *FS) Open(ctx context.Context, path string, mode Mode) (*File, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	switch mode {
	case ModeCreate:
		return fs.create(ctx, path)
	case ModeOpen:
		record, err := fs.catalog.GetFile(ctx, path)
		if err != nil {
			return nil, wrapIndex("open", path, err)
		}
		return &File{fs: fs, path: path, rootID: record.RootID}, nil
	default:
		return nil, fmt.Errorf("xfs: open %q: unknown mode %d", path, mode)
	}
}

func (fs *FS) create(ctx context.Context, path string) (*File, error) {
	// A tombstoned path is still taken: the root post marking its
	// creation cannot be unpublished, so the name is never reusable.
	registered, err := fs.catalog.Registered(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("xfs: create %q: %w", path, err)
	}
	if registered {
		return nil, &Error{Kind: KindAlreadyExists, Op: "create", Path: path}
	}

	payload, err := encodePayload(payloadHeader{Version: payloadVersion, Path: path}, nil)
	if err != nil {
		return nil, err
	}

	rootID, err := fs.adapter.Post(ctx, payload, "")
	if err != nil {
		return nil, wrapSubstrate("create", path, err)
	}

	if err := fs.catalog.CreateFile(ctx, path, rootID, fs.clk.Now()); err != nil {
		return nil, wrapIndex("create", path, err)
	}

	fs.logger.Info("file created", "path", path, "root_id", rootID)
	return &File{fs: fs, path: path, rootID: rootID}, nil
}

// List returns the live immediate children of a directory in
// lexicographic order. Local-only; never calls the substrate. The root
// directory is the empty string.
func (fs *FS) List(ctx context.Context, dir string) ([]string, error) {
	paths, err := fs.catalog.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("xfs: list %q: %w", dir, err)
	}
	return paths, nil
}

// Exists reports whether a live file is registered at the path.
// Local-only; may be stale relative to concurrent external writers.
func (fs *FS) Exists(ctx context.Context, path string) (bool, error) {
	exists, err := fs.catalog.Exists(ctx, path)
	if err != nil {
		return false, fmt.Errorf("xfs: exists %q: %w", path, err)
	}
	return exists, nil
}

// Delete tombstones the file locally. No remote post is retracted; the
// substrate is append-only. Deleting an already-deleted path succeeds;
// deleting a path that never existed fails with KindNotFound.
func (fs *FS) Delete(ctx context.Context, path string) error {
	if err := fs.catalog.Tombstone(ctx, path, fs.clk.Now()); err != nil {
		return wrapIndex("delete", path, err)
	}
	fs.logger.Info("file deleted", "path", path)
	return nil
}

// validatePath rejects paths the catalog's prefix queries cannot
// represent: empty, absolute, trailing-slash, or containing empty
// segments.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("xfs: empty path")
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("xfs: path %q must not begin or end with a slash", path)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("xfs: path %q contains an empty segment", path)
	}
	return nil
}
