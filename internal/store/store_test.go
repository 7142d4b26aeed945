package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra/ragcore/internal/chunk"
)

func testChunks(docID string, n int) []*chunk.Chunk {
	chunks := make([]*chunk.Chunk, n)
	for i := range chunks {
		content := "chunk content number " + string(rune('a'+i))
		chunks[i] = &chunk.Chunk{
			ID:         docID + ":" + string(rune('a'+i)),
			DocumentID: docID,
			Content:    content,
			TokenCount: 6,
			Strategy:   chunk.StrategyFixed,
		}
	}
	return chunks
}

// runChunkStoreTests exercises the ChunkStore contract against any
// implementation.
func runChunkStoreTests(t *testing.T, newStore func(t *testing.T) ChunkStore) {
	ctx := context.Background()

	t.Run("put and get document", func(t *testing.T) {
		s := newStore(t)
		meta := DocumentMeta{
			ID:        "doc1",
			Title:     "First Document",
			FileType:  "md",
			Owner:     "user-1",
			UpdatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, s.PutDocument(ctx, meta, testChunks("doc1", 3)))

		got, err := s.GetDocument(ctx, "doc1")
		require.NoError(t, err)
		assert.Equal(t, "First Document", got.Title)
		assert.Equal(t, 3, got.ChunkCount)
		assert.Equal(t, "user-1", got.Owner)

		count, err := s.ChunkCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("put replaces chunks", func(t *testing.T) {
		s := newStore(t)
		meta := DocumentMeta{ID: "doc1"}
		require.NoError(t, s.PutDocument(ctx, meta, testChunks("doc1", 4)))
		require.NoError(t, s.PutDocument(ctx, meta, testChunks("doc1", 2)))

		chunks, err := s.ListChunks(ctx, "doc1")
		require.NoError(t, err)
		assert.Len(t, chunks, 2)

		count, err := s.ChunkCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("get chunk", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutDocument(ctx, DocumentMeta{ID: "doc1"}, testChunks("doc1", 2)))

		c, err := s.GetChunk(ctx, "doc1:a")
		require.NoError(t, err)
		assert.Equal(t, "doc1", c.DocumentID)
		assert.Equal(t, chunk.StrategyFixed, c.Strategy)

		_, err = s.GetChunk(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list documents ordered", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutDocument(ctx, DocumentMeta{ID: "b"}, testChunks("b", 1)))
		require.NoError(t, s.PutDocument(ctx, DocumentMeta{ID: "a"}, testChunks("a", 1)))

		docs, err := s.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0].ID)
		assert.Equal(t, "b", docs[1].ID)
	})

	t.Run("delete document cascades", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutDocument(ctx, DocumentMeta{ID: "doc1"}, testChunks("doc1", 3)))
		require.NoError(t, s.DeleteDocument(ctx, "doc1"))

		_, err := s.GetDocument(ctx, "doc1")
		assert.ErrorIs(t, err, ErrNotFound)
		count, err := s.ChunkCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		assert.ErrorIs(t, s.DeleteDocument(ctx, "doc1"), ErrNotFound)
	})

	t.Run("all chunks", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutDocument(ctx, DocumentMeta{ID: "doc1"}, testChunks("doc1", 2)))
		require.NoError(t, s.PutDocument(ctx, DocumentMeta{ID: "doc2"}, testChunks("doc2", 2)))

		all, err := s.AllChunks(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("missing document listing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.ListChunks(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runChunkStoreTests(t, func(t *testing.T) ChunkStore {
		s := NewMemoryStore()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runChunkStoreTests(t, func(t *testing.T) ChunkStore {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutDocument(ctx, DocumentMeta{ID: "doc1", Title: "Persisted"}, testChunks("doc1", 2)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	meta, err := reopened.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Persisted", meta.Title)

	chunks, err := reopened.ListChunks(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
