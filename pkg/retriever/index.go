package retriever

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/calyptra/ragcore/internal/chunk"
	"github.com/calyptra/ragcore/internal/lexical"
	"github.com/calyptra/ragcore/internal/ragerr"
	"github.com/calyptra/ragcore/internal/store"
	"github.com/calyptra/ragcore/internal/vector"
)

// IndexResult summarizes one indexed document.
type IndexResult struct {
	DocumentID string
	ChunkCount int
	Strategy   chunk.Strategy
	Fallback   bool
	Quality    float64
}

// IndexDocument chunks, embeds, stores and indexes one document. Within a
// document the chain is strictly sequential; the lexical index is rebuilt
// at the end.
func (r *Retriever) IndexDocument(ctx context.Context, doc Document) (*IndexResult, error) {
	res, err := r.ingest(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := r.rebuildLexical(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// IndexDocuments indexes docs on a worker pool, then rebuilds the lexical
// index once. workers <= 0 defaults to 4.
func (r *Retriever) IndexDocuments(ctx context.Context, docs []Document, workers int) ([]*IndexResult, error) {
	if workers <= 0 {
		workers = 4
	}

	results := make([]*IndexResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for i, doc := range docs {
		g.Go(func() error {
			res, err := r.ingest(gctx, doc)
			if err != nil {
				return fmt.Errorf("index %s: %w", doc.ID, err)
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := r.rebuildLexical(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteDocument removes a document from all stores and rebuilds the
// lexical index.
func (r *Retriever) DeleteDocument(ctx context.Context, documentID string) error {
	chunks, err := r.chunks.ListChunks(ctx, documentID)
	if err != nil {
		return err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	if err := r.vectors.Delete(ctx, ids); err != nil {
		return err
	}
	if err := r.chunks.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	return r.rebuildLexical(ctx)
}

// ingest runs the per-document chain: chunk, persist, embed, upsert.
func (r *Retriever) ingest(ctx context.Context, doc Document) (*IndexResult, error) {
	if doc.ID == "" {
		return nil, ragerr.Validation("document ID is required")
	}

	chunkRes := r.chunker.Chunk(doc.Content, chunk.Metadata{
		DocumentID: doc.ID,
		Title:      doc.Title,
		FileType:   doc.FileType,
	}, chunk.Options{
		Strategy:  chunk.Strategy(r.cfg.Chunking.Strategy),
		ChunkSize: r.cfg.Chunking.ChunkSize,
		Overlap:   r.cfg.Chunking.Overlap,
		MaxChunks: r.cfg.Chunking.MaxChunks,
	})
	chunks := chunk.DeduplicateChunks(chunkRes.Chunks, r.chunker.DedupeThreshold)

	meta := store.DocumentMeta{
		ID:        doc.ID,
		Title:     doc.Title,
		FileType:  doc.FileType,
		Owner:     doc.Owner,
		UpdatedAt: doc.UpdatedAt,
	}
	if err := r.chunks.PutDocument(ctx, meta, chunks); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, ragerr.Provider("embed chunks", err)
	}

	for i, c := range chunks {
		err := r.vectors.Upsert(ctx, c.ID, vectors[i], vector.ChunkMeta{
			Content:   c.Content,
			Title:     doc.Title,
			FileType:  doc.FileType,
			Owner:     doc.Owner,
			UpdatedAt: doc.UpdatedAt,
			Quality:   chunkRes.Quality,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert vector %s: %w", c.ID, err)
		}
	}

	r.log.Info("document indexed",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"strategy", string(chunkRes.Strategy),
		"fallback", chunkRes.Fallback)

	return &IndexResult{
		DocumentID: doc.ID,
		ChunkCount: len(chunks),
		Strategy:   chunkRes.Strategy,
		Fallback:   chunkRes.Fallback,
		Quality:    chunkRes.Quality,
	}, nil
}

// Warm rebuilds the lexical index from the persisted chunk corpus. Call it
// after constructing a Retriever over existing stores; the lexical index
// lives in memory and does not survive a restart on its own.
func (r *Retriever) Warm(ctx context.Context) error {
	return r.rebuildLexical(ctx)
}

// rebuildLexical rebuilds the lexical index from the full chunk corpus and
// swaps it in atomically.
func (r *Retriever) rebuildLexical(ctx context.Context) error {
	chunks, err := r.chunks.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	docs := make([]*lexical.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = &lexical.Document{ID: c.ID, Content: c.Content}
	}
	if err := r.lexical.Build(ctx, docs); err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}
	return nil
}
