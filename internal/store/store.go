// Package store persists documents and their chunks. The memory store
// backs tests and ephemeral use; the SQLite store backs the CLI so an
// indexed corpus survives restarts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/calyptra/ragcore/internal/chunk"
)

// ErrNotFound reports a missing document or chunk.
var ErrNotFound = errors.New("not found")

// DocumentMeta describes one stored document.
type DocumentMeta struct {
	ID         string
	Title      string
	FileType   string
	Owner      string
	UpdatedAt  time.Time
	ChunkCount int
}

// ChunkStore persists chunked documents. PutDocument replaces any prior
// version of the document and its chunks.
type ChunkStore interface {
	PutDocument(ctx context.Context, meta DocumentMeta, chunks []*chunk.Chunk) error
	GetDocument(ctx context.Context, id string) (DocumentMeta, error)
	ListDocuments(ctx context.Context) ([]DocumentMeta, error)
	DeleteDocument(ctx context.Context, id string) error

	GetChunk(ctx context.Context, id string) (*chunk.Chunk, error)
	ListChunks(ctx context.Context, documentID string) ([]*chunk.Chunk, error)

	// AllChunks streams every stored chunk, for index rebuilds.
	AllChunks(ctx context.Context) ([]*chunk.Chunk, error)

	ChunkCount(ctx context.Context) (int, error)
	Close() error
}
