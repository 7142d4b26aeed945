package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/calyptra/ragcore/internal/chunk"
)

// SQLiteStore is a ChunkStore on SQLite with WAL mode for concurrent
// reader access.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	file_type   TEXT NOT NULL DEFAULT '',
	owner       TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	content       TEXT NOT NULL,
	token_count   INTEGER NOT NULL,
	start_offset  INTEGER NOT NULL,
	end_offset    INTEGER NOT NULL,
	strategy      TEXT NOT NULL DEFAULT '',
	section_level INTEGER NOT NULL DEFAULT 0,
	section_title TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, seq);
`

// NewSQLiteStore opens or creates the store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc.org/sqlite ignores some DSN params; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

var _ ChunkStore = (*SQLiteStore)(nil)

// PutDocument replaces the document and its chunks in one transaction.
func (s *SQLiteStore) PutDocument(ctx context.Context, meta DocumentMeta, chunks []*chunk.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, meta.ID); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}

	updated := meta.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, file_type, owner, updated_at, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			file_type = excluded.file_type,
			owner = excluded.owner,
			updated_at = excluded.updated_at,
			chunk_count = excluded.chunk_count`,
		meta.ID, meta.Title, meta.FileType, meta.Owner, updated.Unix(), len(chunks))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, seq, content, token_count,
			start_offset, end_offset, strategy, section_level, section_title)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer insert.Close()

	for seq, c := range chunks {
		_, err := insert.ExecContext(ctx, c.ID, meta.ID, seq, c.Content, c.TokenCount,
			c.StartOffset, c.EndOffset, string(c.Strategy), c.SectionLevel, c.SectionTitle)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetDocument returns the metadata for id.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (DocumentMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, file_type, owner, updated_at, chunk_count
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocuments returns all documents ordered by ID.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]DocumentMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, file_type, owner, updated_at, chunk_count
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentMeta
	for rows.Next() {
		meta, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// DeleteDocument removes the document and, via cascade, its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChunk returns one chunk by ID.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, token_count, start_offset,
			end_offset, strategy, section_level, section_title
		FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

// ListChunks returns the chunks of one document in sequence order.
func (s *SQLiteStore) ListChunks(ctx context.Context, documentID string) ([]*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.GetDocumentUnlocked(ctx, documentID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, token_count, start_offset,
			end_offset, strategy, section_level, section_title
		FROM chunks WHERE document_id = ? ORDER BY seq`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// GetDocumentUnlocked looks up a document without taking the store lock.
// Callers must hold at least a read lock.
func (s *SQLiteStore) GetDocumentUnlocked(ctx context.Context, id string) (DocumentMeta, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, file_type, owner, updated_at, chunk_count
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// AllChunks returns every stored chunk ordered by chunk ID.
func (s *SQLiteStore) AllChunks(ctx context.Context) ([]*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, token_count, start_offset,
			end_offset, strategy, section_level, section_title
		FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ChunkCount returns the number of stored chunks.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (DocumentMeta, error) {
	var meta DocumentMeta
	var updated int64
	err := row.Scan(&meta.ID, &meta.Title, &meta.FileType, &meta.Owner, &updated, &meta.ChunkCount)
	if err == sql.ErrNoRows {
		return DocumentMeta{}, ErrNotFound
	}
	if err != nil {
		return DocumentMeta{}, fmt.Errorf("scan document: %w", err)
	}
	meta.UpdatedAt = time.Unix(updated, 0).UTC()
	return meta, nil
}

func scanChunk(row rowScanner) (*chunk.Chunk, error) {
	var c chunk.Chunk
	var strategy string
	err := row.Scan(&c.ID, &c.DocumentID, &c.Content, &c.TokenCount,
		&c.StartOffset, &c.EndOffset, &strategy, &c.SectionLevel, &c.SectionTitle)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	c.Strategy = chunk.Strategy(strategy)
	return &c, nil
}

func collectChunks(rows *sql.Rows) ([]*chunk.Chunk, error) {
	var out []*chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
