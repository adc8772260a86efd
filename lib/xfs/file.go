// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package xfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryptopatrick/xfiles/lib/chunk"
	"github.com/cryptopatrick/xfiles/lib/index"
	"github.com/cryptopatrick/xfiles/lib/substrate"
)

// Commit is a reference to one published version of a file.
type Commit struct {
	// ID is the post identifier of the commit's first chunk.
	ID substrate.PostID

	// Parents is the ordered parent list; always a single element
	// today (the previous head, or the file root for the first
	// commit).
	Parents []substrate.PostID

	// Timestamp is when the commit was published.
	Timestamp time.Time

	// Author identifies who published the commit.
	Author string

	// Hash is the hex digest of the content.
	Hash string

	// MIME is the content type recorded at write time.
	MIME string

	// Size is the content length in bytes.
	Size int64
}

func commitFromRecord(record index.CommitRecord) Commit {
	return Commit{
		ID:        record.ID,
		Parents:   record.ParentIDs,
		Timestamp: record.Timestamp,
		Author:    record.Author,
		Hash:      record.Hash,
		MIME:      record.MIME,
		Size:      record.Size,
	}
}

// File is a handle on one versioned file. Operations on a single
// handle are serialized; operations on distinct handles run
// concurrently, all drawing from the owning FS's shared rate budget.
type File struct {
	fs     *FS
	path   string
	rootID substrate.PostID

	mu sync.Mutex
}

// Path returns the file's path.
func (f *File) Path() string { return f.path }

// Head returns the id of the current head: the newest commit, or the
// file's root post if nothing has been written yet.
func (f *File) Head(ctx context.Context) (substrate.PostID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headLocked(ctx)
}

func (f *File) headLocked(ctx context.Context) (substrate.PostID, error) {
	head, err := f.fs.catalog.Head(ctx, f.rootID)
	if err != nil {
		return "", wrapIndex("head", f.path, err)
	}
	if head == nil {
		return f.rootID, nil
	}
	return head.ID, nil
}

// History returns the file's commits from oldest to newest. A file
// with no writes yet has an empty history.
func (f *File) History(ctx context.Context) ([]Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.fs.catalog.History(ctx, f.rootID)
	if err != nil {
		return nil, wrapIndex("history", f.path, err)
	}
	commits := make([]Commit, len(records))
	for i, record := range records {
		commits[i] = commitFromRecord(record)
	}
	return commits, nil
}

// Write publishes content as a new commit with the default MIME type
// and advances the head. See WriteMIME.
func (f *File) Write(ctx context.Context, content []byte) (*Commit, error) {
	return f.WriteMIME(ctx, content, DefaultMIME)
}

// WriteMIME publishes content as a new commit. The framed content is
// split into posts no larger than the substrate limit; chunk 0 replies
// to the current head and each later chunk replies to its predecessor,
// so the remote reply chain alone suffices to reconstruct the version
// graph.
//
// If any chunk post fails after the retry budget is exhausted, the
// whole write aborts and no catalog rows are persisted, even though
// earlier chunks may already exist remotely as orphans. Retrying the
// call publishes fresh posts; it is not idempotent.
func (f *File) WriteMIME(ctx context.Context, content []byte, mime string) (*Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	headID, err := f.headLocked(ctx)
	if err != nil {
		return nil, err
	}

	digest := chunk.Fingerprint(content)

	body := content
	codecName := ""
	if f.fs.compress {
		body = f.fs.encoder.EncodeAll(content, nil)
		codecName = "zstd"
	}

	framed, err := encodePayload(payloadHeader{
		Version: payloadVersion,
		MIME:    mime,
		Size:    int64(len(content)),
		Hash:    digest.String(),
		Codec:   codecName,
	}, body)
	if err != nil {
		return nil, err
	}

	parts := chunk.Split(framed, f.fs.maxSize)

	postIDs := make([]substrate.PostID, 0, len(parts))
	replyTo := headID
	for i, part := range parts {
		id, err := f.fs.adapter.Post(ctx, part, replyTo)
		if err != nil {
			return nil, wrapSubstrate(fmt.Sprintf("write chunk %d/%d", i, len(parts)), f.path, err)
		}
		postIDs = append(postIDs, id)
		replyTo = id
	}

	record := index.CommitRecord{
		ID:        postIDs[0],
		ParentIDs: []substrate.PostID{headID},
		Timestamp: f.fs.clk.Now(),
		Author:    f.fs.author,
		Hash:      digest.String(),
		MIME:      mime,
		Size:      int64(len(content)),
		IsHead:    true,
	}
	chunkRecords := make([]index.ChunkRecord, len(parts))
	for i, part := range parts {
		chunkRecords[i] = index.ChunkRecord{
			ID:             postIDs[i],
			ParentCommitID: record.ID,
			Idx:            i,
			Size:           int64(len(part)),
			Hash:           chunk.Fingerprint(part).String(),
		}
	}

	if err := f.fs.catalog.PutCommit(ctx, record, chunkRecords); err != nil {
		return nil, wrapIndex("write", f.path, err)
	}

	f.fs.cache.Put(record.ID, content)

	f.fs.logger.Info("commit published",
		"path", f.path,
		"commit_id", record.ID,
		"parent", headID,
		"chunks", len(parts),
		"size", len(content),
	)

	commit := commitFromRecord(record)
	return &commit, nil
}

// Read returns the content at the current head. A file with no writes
// yet reads as empty. Served from the in-memory cache when possible;
// otherwise the head commit's chunks are fetched from the substrate,
// reassembled, and verified against the recorded hash before anything
// is returned.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	head, err := f.fs.catalog.Head(ctx, f.rootID)
	if err != nil {
		return nil, wrapIndex("read", f.path, err)
	}
	if head == nil {
		return []byte{}, nil
	}
	return f.reconstruct(ctx, head)
}

// ReadAt returns the content of a specific commit in this file's
// history. The same verification as Read applies. Returns
// KindNotFound if the commit is not part of this file's chain.
func (f *File) ReadAt(ctx context.Context, commitID substrate.PostID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.fs.catalog.History(ctx, f.rootID)
	if err != nil {
		return nil, wrapIndex("read_at", f.path, err)
	}
	for i := range records {
		if records[i].ID == commitID {
			return f.reconstruct(ctx, &records[i])
		}
	}
	return nil, &Error{
		Kind: KindNotFound,
		Op:   "read_at",
		Path: f.path,
		Err:  fmt.Errorf("commit %q not in this file's history", commitID),
	}
}

// reconstruct returns a commit's content, from cache or by fetching
// and verifying its chunks.
func (f *File) reconstruct(ctx context.Context, commit *index.CommitRecord) ([]byte, error) {
	if content, ok := f.fs.cache.Get(commit.ID); ok {
		return content, nil
	}

	chunkRecords, err := f.fs.catalog.Chunks(ctx, commit.ID)
	if err != nil {
		return nil, wrapIndex("read", f.path, err)
	}

	parts := make([][]byte, len(chunkRecords))
	for i, record := range chunkRecords {
		post, err := f.fs.adapter.Get(ctx, record.ID)
		if err != nil {
			return nil, wrapSubstrate("read", f.path, err)
		}
		if got := chunk.Fingerprint(post.Content).String(); got != record.Hash {
			return nil, &Error{
				Kind: KindIntegrity,
				Op:   "read",
				Path: f.path,
				Err: fmt.Errorf("chunk %d of commit %q: stored hash %s, fetched bytes hash %s",
					record.Idx, commit.ID, record.Hash, got),
			}
		}
		parts[i] = post.Content
	}

	header, body, err := decodePayload(chunk.Join(parts))
	if err != nil {
		return nil, &Error{Kind: KindIntegrity, Op: "read", Path: f.path, Err: err}
	}

	content := body
	switch header.Codec {
	case "":
	case "zstd":
		content, err = f.fs.decoder.DecodeAll(body, nil)
		if err != nil {
			return nil, &Error{Kind: KindIntegrity, Op: "read", Path: f.path, Err: fmt.Errorf("zstd: %w", err)}
		}
	default:
		return nil, &Error{
			Kind: KindIntegrity,
			Op:   "read",
			Path: f.path,
			Err:  fmt.Errorf("commit %q: unknown content codec %q", commit.ID, header.Codec),
		}
	}

	if got := chunk.Fingerprint(content).String(); got != commit.Hash {
		return nil, &Error{
			Kind: KindIntegrity,
			Op:   "read",
			Path: f.path,
			Err: fmt.Errorf("commit %q: recorded hash %s, reconstructed content hash %s",
				commit.ID, commit.Hash, got),
		}
	}

	f.fs.cache.Put(commit.ID, content)
	return content, nil
}
