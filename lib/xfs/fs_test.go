// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package xfs_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryptopatrick/xfiles/lib/clock"
	"github.com/cryptopatrick/xfiles/lib/index"
	"github.com/cryptopatrick/xfiles/lib/substrate"
	"github.com/cryptopatrick/xfiles/lib/xfs"
)

var testEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// harness bundles an engine with the fakes behind it. The budget is
// set high so only explicitly injected faults cause backoff waits.
type harness struct {
	fs      *xfs.FS
	mock    *substrate.Mock
	catalog *index.Catalog
	clk     *clock.FakeClock
}

func newHarness(t *testing.T, mutate func(*xfs.Config)) *harness {
	t.Helper()

	fakeClock := clock.Fake(testEpoch)
	mock := substrate.NewMock(fakeClock, "tester")
	catalog, err := index.Open(index.Config{
		Path: filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	cfg := xfs.Config{
		Catalog:     catalog,
		Adapter:     mock,
		Author:      "tester",
		BudgetCalls: 1000,
		Clock:       fakeClock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	filesystem, err := xfs.New(cfg)
	if err != nil {
		t.Fatalf("xfs.New: %v", err)
	}
	return &harness{fs: filesystem, mock: mock, catalog: catalog, clk: fakeClock}
}

// reopen builds a second engine over the same catalog and mock, with
// a cold cache, as if the process restarted.
func (h *harness) reopen(t *testing.T) *xfs.FS {
	t.Helper()
	filesystem, err := xfs.New(xfs.Config{
		Catalog:     h.catalog,
		Adapter:     h.mock,
		Author:      "tester",
		BudgetCalls: 1000,
		Clock:       h.clk,
	})
	if err != nil {
		t.Fatalf("xfs.New (reopen): %v", err)
	}
	return filesystem
}

func TestCreateAndOpen(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	created, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Path() != "memory.txt" {
		t.Errorf("Path = %q, want %q", created.Path(), "memory.txt")
	}

	if _, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate); !xfs.IsKind(err, xfs.KindAlreadyExists) {
		t.Errorf("second create: err = %v, want KindAlreadyExists", err)
	}

	opened, err := h.fs.Open(ctx, "memory.txt", xfs.ModeOpen)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Path() != "memory.txt" {
		t.Errorf("opened Path = %q", opened.Path())
	}

	if _, err := h.fs.Open(ctx, "ghost.txt", xfs.ModeOpen); !xfs.IsKind(err, xfs.KindNotFound) {
		t.Errorf("open missing: err = %v, want KindNotFound", err)
	}

	exists, err := h.fs.Exists(ctx, "memory.txt")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("Exists = false after create")
	}
}

func TestOpenRejectsBadPaths(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for _, path := range []string{"", "/abs.txt", "dir/", "a//b.txt"} {
		if _, err := h.fs.Open(ctx, path, xfs.ModeCreate); err == nil {
			t.Errorf("Open(%q) succeeded, want error", path)
		}
	}
}

func TestReadBeforeFirstWrite(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "empty.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	content, err := file.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(content) != 0 {
		t.Errorf("Read = %q, want empty", content)
	}

	history, err := file.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("History has %d commits, want 0", len(history))
	}

	head, err := file.Head(ctx)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != "post-1" {
		t.Errorf("Head = %q, want the root post id", head)
	}
}

func TestWriteReadScenario(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rootID, _ := file.Head(ctx)

	first, err := file.Write(ctx, []byte("v1"))
	if err != nil {
		t.Fatalf("write v1: %v", err)
	}
	h.clk.Advance(time.Minute)
	second, err := file.Write(ctx, []byte("v2"))
	if err != nil {
		t.Fatalf("write v2: %v", err)
	}

	history, err := file.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History has %d commits, want 2", len(history))
	}
	if history[0].ID != first.ID || history[1].ID != second.ID {
		t.Errorf("History order = [%s %s], want [%s %s]",
			history[0].ID, history[1].ID, first.ID, second.ID)
	}
	if history[0].Parents[0] != rootID {
		t.Errorf("first commit parent = %q, want root %q", history[0].Parents[0], rootID)
	}
	if history[1].Parents[0] != first.ID {
		t.Errorf("second commit parent = %q, want %q", history[1].Parents[0], first.ID)
	}

	content, err := file.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(content, []byte("v2")) {
		t.Errorf("Read = %q, want %q", content, "v2")
	}

	paths, err := h.fs.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 1 || paths[0] != "memory.txt" {
		t.Errorf("List = %v, want [memory.txt]", paths)
	}

	head, err := file.Head(ctx)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != second.ID {
		t.Errorf("Head = %q, want %q", head, second.ID)
	}

	// Only the newest commit carries the head flag in the catalog.
	firstRecord, err := h.catalog.GetCommit(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if firstRecord.IsHead {
		t.Error("first commit still flagged head after second write")
	}
}

func TestMultiChunkReconstruction(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	content := bytes.Repeat([]byte("abcdefghij"), 70) // 700 bytes
	file, err := h.fs.Open(ctx, "big.bin", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	commit, err := file.Write(ctx, content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if commit.Size != 700 {
		t.Errorf("commit Size = %d, want 700", commit.Size)
	}

	// Framed 700 bytes exceed two 280-byte posts: the commit must span
	// several chunk posts, threaded as a reply chain.
	chunks, err := h.catalog.Chunks(ctx, commit.ID)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("commit has %d chunks, want at least 3", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		post, err := h.mock.Get(ctx, chunks[i].ID)
		if err != nil {
			t.Fatalf("Get chunk %d: %v", i, err)
		}
		if post.ReplyTo != chunks[i-1].ID {
			t.Errorf("chunk %d replies to %q, want %q", i, post.ReplyTo, chunks[i-1].ID)
		}
	}

	// A cold-cache engine must rebuild the content from the substrate.
	cold := h.reopen(t)
	reopened, err := cold.Open(ctx, "big.bin", xfs.ModeOpen)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := reopened.Read(ctx)
	if err != nil {
		t.Fatalf("cold Read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("cold read did not reproduce the written content")
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	commit, err := file.Write(ctx, []byte("precious bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The commit id is chunk 0's post id; corrupt those stored bytes.
	if err := h.mock.CorruptPost(commit.ID, []byte("garbage")); err != nil {
		t.Fatalf("CorruptPost: %v", err)
	}

	cold := h.reopen(t)
	reopened, err := cold.Open(ctx, "memory.txt", xfs.ModeOpen)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = reopened.Read(ctx)
	if !xfs.IsKind(err, xfs.KindIntegrity) {
		t.Errorf("Read of corrupted chunk: err = %v, want KindIntegrity", err)
	}
}

func TestReadAt(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first, err := file.Write(ctx, []byte("v1"))
	if err != nil {
		t.Fatalf("write v1: %v", err)
	}
	if _, err := file.Write(ctx, []byte("v2")); err != nil {
		t.Fatalf("write v2: %v", err)
	}

	// Historical version, reconstructed without a warm cache.
	cold := h.reopen(t)
	reopened, err := cold.Open(ctx, "memory.txt", xfs.ModeOpen)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	content, err := reopened.ReadAt(ctx, first.ID)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(content, []byte("v1")) {
		t.Errorf("ReadAt = %q, want %q", content, "v1")
	}

	if _, err := reopened.ReadAt(ctx, "post-999"); !xfs.IsKind(err, xfs.KindNotFound) {
		t.Errorf("ReadAt foreign commit: err = %v, want KindNotFound", err)
	}
}

func TestWriteMIMERecorded(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "notes.md", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := file.WriteMIME(ctx, []byte("# heading"), "text/markdown"); err != nil {
		t.Fatalf("WriteMIME: %v", err)
	}
	if _, err := file.Write(ctx, []byte("raw")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	history, err := file.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history[0].MIME != "text/markdown" {
		t.Errorf("first commit MIME = %q, want text/markdown", history[0].MIME)
	}
	if history[1].MIME != xfs.DefaultMIME {
		t.Errorf("second commit MIME = %q, want %q", history[1].MIME, xfs.DefaultMIME)
	}
	if history[0].Author != "tester" {
		t.Errorf("Author = %q, want tester", history[0].Author)
	}
	if !history[0].Timestamp.Equal(testEpoch) {
		t.Errorf("Timestamp = %v, want %v", history[0].Timestamp, testEpoch)
	}
}

func TestCompressedWriteRoundTrip(t *testing.T) {
	h := newHarness(t, func(cfg *xfs.Config) {
		cfg.Compress = true
	})
	ctx := context.Background()

	content := bytes.Repeat([]byte("compressible "), 100)
	file, err := h.fs.Open(ctx, "log.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	commit, err := file.Write(ctx, content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if commit.Size != int64(len(content)) {
		t.Errorf("commit Size = %d, want uncompressed %d", commit.Size, len(content))
	}

	// A plain (non-compressing) engine must still read it back: the
	// codec travels in the payload header, not in engine config.
	cold := h.reopen(t)
	reopened, err := cold.Open(ctx, "log.txt", xfs.ModeOpen)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := reopened.Read(ctx)
	if err != nil {
		t.Fatalf("cold Read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("compressed round trip did not reproduce the content")
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "doomed.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := file.Write(ctx, []byte("content")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := h.fs.Delete(ctx, "doomed.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	exists, err := h.fs.Exists(ctx, "doomed.txt")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("Exists = true after delete")
	}

	// Idempotent: deleting again succeeds.
	if err := h.fs.Delete(ctx, "doomed.txt"); err != nil {
		t.Errorf("repeat Delete: %v", err)
	}

	// Deleting a path that never existed is an error.
	if err := h.fs.Delete(ctx, "ghost.txt"); !xfs.IsKind(err, xfs.KindNotFound) {
		t.Errorf("Delete missing: err = %v, want KindNotFound", err)
	}

	if _, err := h.fs.Open(ctx, "doomed.txt", xfs.ModeOpen); !xfs.IsKind(err, xfs.KindNotFound) {
		t.Errorf("Open after delete: err = %v, want KindNotFound", err)
	}

	// The name stays taken: the root post cannot be unpublished.
	if _, err := h.fs.Open(ctx, "doomed.txt", xfs.ModeCreate); !xfs.IsKind(err, xfs.KindAlreadyExists) {
		t.Errorf("Create over deleted path: err = %v, want KindAlreadyExists", err)
	}
}

func TestFailedWritePersistsNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := file.Write(ctx, []byte("v1")); err != nil {
		t.Fatalf("write v1: %v", err)
	}

	// A permanent failure on the chunk post aborts the write whole.
	h.mock.InjectPostError(&substrate.Error{Code: substrate.CodeAuth, Message: "revoked"})
	if _, err := file.Write(ctx, []byte("v2")); !xfs.IsKind(err, xfs.KindAuth) {
		t.Fatalf("faulted write: err = %v, want KindAuth", err)
	}

	history, err := file.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("History has %d commits after aborted write, want 1", len(history))
	}
	content, err := file.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(content, []byte("v1")) {
		t.Errorf("Read after aborted write = %q, want v1", content)
	}
}

type writeResult struct {
	commit *xfs.Commit
	err    error
}

// drainBackoffs advances the fake clock through retry backoff waits
// until the write under test finishes.
func drainBackoffs(t *testing.T, fakeClock *clock.FakeClock, results <-chan writeResult) writeResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case result := <-results:
			return result
		case <-deadline:
			t.Fatal("timed out draining backoffs")
		case <-time.After(time.Millisecond):
			if fakeClock.PendingCount() > 0 {
				fakeClock.Advance(time.Minute)
			}
		}
	}
}

func TestWriteRecoversFromRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *xfs.Config) {
		cfg.Retry = substrate.RetryConfig{MaxAttempts: 3}
	})
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two rate-limit faults against three attempts: the write must
	// still complete.
	h.mock.InjectPostError(&substrate.Error{Code: substrate.CodeRateLimited, Message: "slow down"})
	h.mock.InjectPostError(&substrate.Error{Code: substrate.CodeRateLimited, Message: "slow down"})

	results := make(chan writeResult, 1)
	go func() {
		commit, err := file.Write(ctx, []byte("persistent"))
		results <- writeResult{commit, err}
	}()

	result := drainBackoffs(t, h.clk, results)
	if result.err != nil {
		t.Fatalf("Write: %v", result.err)
	}

	content, err := file.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(content, []byte("persistent")) {
		t.Errorf("Read = %q, want %q", content, "persistent")
	}
}

func TestWriteSurfacesRateLimitExhaustion(t *testing.T) {
	h := newHarness(t, func(cfg *xfs.Config) {
		cfg.Retry = substrate.RetryConfig{MaxAttempts: 3}
	})
	ctx := context.Background()

	file, err := h.fs.Open(ctx, "memory.txt", xfs.ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		h.mock.InjectPostError(&substrate.Error{Code: substrate.CodeRateLimited, Message: "slow down"})
	}

	results := make(chan writeResult, 1)
	go func() {
		commit, err := file.Write(ctx, []byte("doomed"))
		results <- writeResult{commit, err}
	}()

	result := drainBackoffs(t, h.clk, results)
	if !xfs.IsKind(result.err, xfs.KindRateLimited) {
		t.Errorf("Write: err = %v, want KindRateLimited", result.err)
	}

	history, err := file.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("History has %d commits after failed write, want 0", len(history))
	}
}
