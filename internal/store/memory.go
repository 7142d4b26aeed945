package store

import (
	"context"
	"sort"
	"sync"

	"github.com/calyptra/ragcore/internal/chunk"
)

// MemoryStore is an in-memory ChunkStore.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]DocumentMeta
	chunks map[string]*chunk.Chunk
	byDoc  map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]DocumentMeta),
		chunks: make(map[string]*chunk.Chunk),
		byDoc:  make(map[string][]string),
	}
}

var _ ChunkStore = (*MemoryStore)(nil)

// PutDocument replaces the document and its chunks.
func (m *MemoryStore) PutDocument(ctx context.Context, meta DocumentMeta, chunks []*chunk.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.byDoc[meta.ID] {
		delete(m.chunks, id)
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		m.chunks[c.ID] = c
		ids = append(ids, c.ID)
	}
	meta.ChunkCount = len(chunks)
	m.docs[meta.ID] = meta
	m.byDoc[meta.ID] = ids
	return nil
}

// GetDocument returns the metadata for id.
func (m *MemoryStore) GetDocument(ctx context.Context, id string) (DocumentMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.docs[id]
	if !ok {
		return DocumentMeta{}, ErrNotFound
	}
	return meta, nil
}

// ListDocuments returns all documents ordered by ID.
func (m *MemoryStore) ListDocuments(ctx context.Context) ([]DocumentMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DocumentMeta, 0, len(m.docs))
	for _, meta := range m.docs {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteDocument removes the document and its chunks.
func (m *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	for _, chunkID := range m.byDoc[id] {
		delete(m.chunks, chunkID)
	}
	delete(m.byDoc, id)
	delete(m.docs, id)
	return nil
}

// GetChunk returns one chunk by ID.
func (m *MemoryStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chunks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// ListChunks returns the chunks of one document in insertion order.
func (m *MemoryStore) ListChunks(ctx context.Context, documentID string) ([]*chunk.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.byDoc[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]*chunk.Chunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.chunks[id])
	}
	return out, nil
}

// AllChunks returns every stored chunk ordered by chunk ID.
func (m *MemoryStore) AllChunks(ctx context.Context) ([]*chunk.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*chunk.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ChunkCount returns the number of stored chunks.
func (m *MemoryStore) ChunkCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
