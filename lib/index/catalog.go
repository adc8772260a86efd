// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cryptopatrick/xfiles/lib/sqlitepool"
	"github.com/cryptopatrick/xfiles/lib/substrate"
)

// Sentinel errors returned by catalog lookups. Callers classify them
// with errors.Is; the engine maps them onto its own error taxonomy.
var (
	// ErrNotFound means the requested row does not exist (or, for
	// files, has been tombstoned).
	ErrNotFound = errors.New("index: not found")

	// ErrAlreadyExists means an insert collided with an existing
	// primary key.
	ErrAlreadyExists = errors.New("index: already exists")

	// ErrCorrupt means the catalog's rows are internally inconsistent:
	// chunk indexes with gaps, a commit chain with a fork, or a chain
	// that never terminates at its file root.
	ErrCorrupt = errors.New("index: corrupt")
)

// FileRecord is one row of the files table, plus its tombstone state.
type FileRecord struct {
	// Path is the file's unique path within the filesystem.
	Path string

	// RootID is the substrate post that marks the file's creation.
	// Every commit chain for this file terminates at this post.
	RootID substrate.PostID

	// CreatedAt is when the root post was published.
	CreatedAt time.Time

	// DeletedAt is non-nil if the file has been tombstoned. Tombstoned
	// files are invisible to GetFile, List, and Exists; the record is
	// only reachable through getFileAny on the delete path.
	DeletedAt *time.Time
}

// CommitRecord is one row of the commits table.
type CommitRecord struct {
	// ID is the post identifier of the commit's first chunk. Globally
	// unique; doubles as the commit identifier everywhere.
	ID substrate.PostID

	// ParentIDs is the ordered parent list. The write path always
	// produces a single parent (the previous head, or the file root
	// for the first commit); the list shape is preserved in storage.
	ParentIDs []substrate.PostID

	// Timestamp is when the commit was published.
	Timestamp time.Time

	// Author identifies who published the commit.
	Author string

	// Hash is the hex digest of the full (uncompressed) content.
	Hash string

	// MIME is the content type recorded at write time.
	MIME string

	// Size is the content length in bytes before compression.
	Size int64

	// IsHead marks the current head of the file's chain. At most one
	// commit per file carries it.
	IsHead bool
}

// ChunkRecord is one row of the chunks table.
type ChunkRecord struct {
	// ID is the substrate post carrying this chunk's bytes.
	ID substrate.PostID

	// ParentCommitID is the commit this chunk belongs to.
	ParentCommitID substrate.PostID

	// Idx is the chunk's 0-based position within the commit. Contiguous
	// per commit.
	Idx int

	// Size is the chunk length in bytes.
	Size int64

	// Hash is the hex digest of the chunk bytes.
	Hash string
}

// Config holds the parameters for opening a catalog.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// PoolSize is the connection pool size. Defaults per sqlitepool.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Catalog is the SQLite-backed file/commit/chunk catalog. Safe for
// concurrent use; every method borrows a pooled connection for the
// duration of the call.
type Catalog struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if necessary) the catalog database and applies
// the schema. The caller must Close the catalog when done.
func Open(cfg Config) (*Catalog, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	return &Catalog{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (c *Catalog) Close() error {
	return c.pool.Close()
}

// CreateFile inserts a files row. Returns ErrAlreadyExists if the path
// is already registered, tombstoned or not: paths are never reused
// because the root post backing them cannot be unpublished.
func (c *Catalog) CreateFile(ctx context.Context, path string, rootID substrate.PostID, createdAt time.Time) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO files (path, root_id, created_at) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{path, string(rootID), createdAt.UnixNano()},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintPrimaryKey {
			return fmt.Errorf("index: file %q: %w", path, ErrAlreadyExists)
		}
		return fmt.Errorf("index: create file %q: %w", path, err)
	}

	c.logger.Debug("file registered", "path", path, "root_id", rootID)
	return nil
}

// GetFile returns the files row for a path. Tombstoned files return
// ErrNotFound, the same as paths that never existed.
func (c *Catalog) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	record, err := c.getFileAny(ctx, path)
	if err != nil {
		return nil, err
	}
	if record.DeletedAt != nil {
		return nil, fmt.Errorf("index: file %q: %w", path, ErrNotFound)
	}
	return record, nil
}

// getFileAny returns the files row regardless of tombstone state. The
// delete path uses it to distinguish "never existed" from "already
// deleted".
func (c *Catalog) getFileAny(ctx context.Context, path string) (*FileRecord, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	var record *FileRecord
	err = sqlitex.Execute(conn,
		`SELECT f.root_id, f.created_at, t.deleted_at
		 FROM files f LEFT JOIN tombstones t ON t.path = f.path
		 WHERE f.path = ?`,
		&sqlitex.ExecOptions{
			Args: []any{path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = &FileRecord{
					Path:      path,
					RootID:    substrate.PostID(stmt.ColumnText(0)),
					CreatedAt: time.Unix(0, stmt.ColumnInt64(1)).UTC(),
				}
				if !stmt.ColumnIsNull(2) {
					deletedAt := time.Unix(0, stmt.ColumnInt64(2)).UTC()
					record.DeletedAt = &deletedAt
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("index: get file %q: %w", path, err)
	}
	if record == nil {
		return nil, fmt.Errorf("index: file %q: %w", path, ErrNotFound)
	}
	return record, nil
}

// Tombstone marks a path deleted. Returns ErrNotFound if the path was
// never registered; tombstoning an already-tombstoned path is a no-op
// success, preserving delete idempotency.
func (c *Catalog) Tombstone(ctx context.Context, path string, deletedAt time.Time) error {
	record, err := c.getFileAny(ctx, path)
	if err != nil {
		return err
	}
	if record.DeletedAt != nil {
		return nil
	}

	conn, err := c.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO tombstones (path, deleted_at) VALUES (?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{path, deletedAt.UnixNano()},
		})
	if err != nil {
		return fmt.Errorf("index: tombstone %q: %w", path, err)
	}

	c.logger.Debug("file tombstoned", "path", path)
	return nil
}

// Registered reports whether any files row exists at the path,
// tombstoned or not. The create path uses it: a tombstoned path still
// occupies its name, because the root post backing it is permanent.
func (c *Catalog) Registered(ctx context.Context, path string) (bool, error) {
	_, err := c.getFileAny(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Exists reports whether a live (non-tombstoned) file is registered at
// the path.
func (c *Catalog) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.GetFile(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns the paths of live files that are immediate children of
// the given directory, in lexicographic order. The root directory is
// the empty string. Files nested deeper than one level are excluded;
// so are tombstoned files.
func (c *Catalog) List(ctx context.Context, dir string) ([]string, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	prefix := dir
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	// Immediate children only: the remainder after the prefix must not
	// contain a separator.
	var paths []string
	err = sqlitex.Execute(conn,
		`SELECT f.path FROM files f
		 LEFT JOIN tombstones t ON t.path = f.path
		 WHERE t.path IS NULL
		   AND f.path LIKE ? ESCAPE '\'
		   AND substr(f.path, ?) NOT LIKE '%/%'
		 ORDER BY f.path`,
		&sqlitex.ExecOptions{
			Args: []any{escapeLike(prefix) + "%", len(prefix) + 1},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				paths = append(paths, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("index: list %q: %w", dir, err)
	}
	return paths, nil
}

// escapeLike escapes LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return replacer.Replace(s)
}

// PutCommit inserts a commit row and its chunk rows, and flips the
// head flag from the commit's parents to the new commit, all in one
// IMMEDIATE transaction. Returns ErrAlreadyExists if the commit id is
// already present.
//
// The caller must only invoke PutCommit after every chunk post has
// been confirmed by the substrate: a row in this catalog asserts the
// remote state exists.
func (c *Catalog) PutCommit(ctx context.Context, commit CommitRecord, chunks []ChunkRecord) (err error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("index: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	parentIDs, err := marshalParents(commit.ParentIDs)
	if err != nil {
		return err
	}

	// Clear the head flag on every parent. Parents that are file roots
	// have no commits row; the update simply matches nothing.
	for _, parent := range commit.ParentIDs {
		err = sqlitex.Execute(conn,
			"UPDATE commits SET is_head = 0 WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{string(parent)}})
		if err != nil {
			return fmt.Errorf("index: clear head %q: %w", parent, err)
		}
	}

	isHead := 0
	if commit.IsHead {
		isHead = 1
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO commits (id, parent_ids, timestamp, author, hash, mime, size, is_head)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(commit.ID),
				parentIDs,
				commit.Timestamp.UnixNano(),
				commit.Author,
				commit.Hash,
				commit.MIME,
				commit.Size,
				isHead,
			},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintPrimaryKey {
			return fmt.Errorf("index: commit %q: %w", commit.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("index: insert commit %q: %w", commit.ID, err)
	}

	for _, chunk := range chunks {
		err = sqlitex.Execute(conn,
			`INSERT INTO chunks (id, parent_commit_id, idx, size, hash)
			 VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					string(chunk.ID),
					string(chunk.ParentCommitID),
					chunk.Idx,
					chunk.Size,
					chunk.Hash,
				},
			})
		if err != nil {
			return fmt.Errorf("index: insert chunk %q: %w", chunk.ID, err)
		}
	}

	c.logger.Debug("commit recorded",
		"commit_id", commit.ID,
		"chunks", len(chunks),
		"size", commit.Size,
	)
	return nil
}

// GetCommit returns the commits row for an id.
func (c *Catalog) GetCommit(ctx context.Context, id substrate.PostID) (*CommitRecord, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	record, err := getCommit(conn, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("index: commit %q: %w", id, ErrNotFound)
	}
	return record, nil
}

func getCommit(conn *sqlite.Conn, id substrate.PostID) (*CommitRecord, error) {
	var record *CommitRecord
	var scanErr error
	err := sqlitex.Execute(conn,
		`SELECT parent_ids, timestamp, author, hash, mime, size, is_head
		 FROM commits WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				parents, err := unmarshalParents(stmt.ColumnText(0))
				if err != nil {
					scanErr = err
					return nil
				}
				record = &CommitRecord{
					ID:        id,
					ParentIDs: parents,
					Timestamp: time.Unix(0, stmt.ColumnInt64(1)).UTC(),
					Author:    stmt.ColumnText(2),
					Hash:      stmt.ColumnText(3),
					MIME:      stmt.ColumnText(4),
					Size:      stmt.ColumnInt64(5),
					IsHead:    stmt.ColumnInt(6) != 0,
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("index: get commit %q: %w", id, err)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("index: commit %q parent_ids: %w (%v)", id, ErrCorrupt, scanErr)
	}
	return record, nil
}

// Chunks returns the chunk rows of a commit ordered by idx. Returns
// ErrNotFound if the commit has no chunks at all, and ErrCorrupt if
// the idx sequence has gaps or duplicates.
func (c *Catalog) Chunks(ctx context.Context, commitID substrate.PostID) ([]ChunkRecord, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	var chunks []ChunkRecord
	err = sqlitex.Execute(conn,
		`SELECT id, idx, size, hash FROM chunks
		 WHERE parent_commit_id = ? ORDER BY idx`,
		&sqlitex.ExecOptions{
			Args: []any{string(commitID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				chunks = append(chunks, ChunkRecord{
					ID:             substrate.PostID(stmt.ColumnText(0)),
					ParentCommitID: commitID,
					Idx:            stmt.ColumnInt(1),
					Size:           stmt.ColumnInt64(2),
					Hash:           stmt.ColumnText(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("index: chunks of %q: %w", commitID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("index: chunks of %q: %w", commitID, ErrNotFound)
	}
	for i, chunk := range chunks {
		if chunk.Idx != i {
			return nil, fmt.Errorf("index: commit %q chunk %d has idx %d: %w",
				commitID, i, chunk.Idx, ErrCorrupt)
		}
	}
	return chunks, nil
}

// History returns the commit chain of a file from oldest to newest.
// Returns an empty slice for a file with no commits yet. The chain is
// walked forward from the root; a fork (two commits sharing a parent)
// is reported as ErrCorrupt because the write path only ever produces
// linear chains.
func (c *Catalog) History(ctx context.Context, rootID substrate.PostID) ([]CommitRecord, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	var history []CommitRecord
	current := rootID
	for {
		child, err := childOf(conn, current)
		if err != nil {
			return nil, err
		}
		if child == "" {
			break
		}
		record, err := getCommit(conn, child)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("index: commit %q referenced but missing: %w", child, ErrCorrupt)
		}
		history = append(history, *record)
		current = child
	}

	// The final commit (if any) must carry the head flag.
	if len(history) > 0 && !history[len(history)-1].IsHead {
		return nil, fmt.Errorf("index: chain from %q ends at %q without head flag: %w",
			rootID, history[len(history)-1].ID, ErrCorrupt)
	}
	return history, nil
}

// Head returns the head commit of a file's chain, or nil if the file
// has no commits yet (the head is the file root).
func (c *Catalog) Head(ctx context.Context, rootID substrate.PostID) (*CommitRecord, error) {
	history, err := c.History(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	head := history[len(history)-1]
	return &head, nil
}

// childOf returns the single commit whose parent list contains the
// given id, or "" if none. More than one child means the chain forked,
// which the linear write path never produces.
func childOf(conn *sqlite.Conn, id substrate.PostID) (substrate.PostID, error) {
	var children []substrate.PostID
	err := sqlitex.Execute(conn,
		`SELECT c.id FROM commits c, json_each(c.parent_ids) p
		 WHERE p.value = ? ORDER BY c.timestamp`,
		&sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				children = append(children, substrate.PostID(stmt.ColumnText(0)))
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("index: child of %q: %w", id, err)
	}
	switch len(children) {
	case 0:
		return "", nil
	case 1:
		return children[0], nil
	default:
		return "", fmt.Errorf("index: %q has %d children: %w", id, len(children), ErrCorrupt)
	}
}

// marshalParents encodes the ordered parent list as a JSON array
// string, the storage form shared with other readers of the catalog.
func marshalParents(parents []substrate.PostID) (string, error) {
	if parents == nil {
		parents = []substrate.PostID{}
	}
	data, err := json.Marshal(parents)
	if err != nil {
		return "", fmt.Errorf("index: marshal parent_ids: %w", err)
	}
	return string(data), nil
}

func unmarshalParents(raw string) ([]substrate.PostID, error) {
	var parents []substrate.PostID
	if err := json.Unmarshal([]byte(raw), &parents); err != nil {
		return nil, err
	}
	return parents, nil
}
