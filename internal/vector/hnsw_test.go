package vector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *HNSWStore {
	t.Helper()
	store, err := NewHNSWStore(HNSWConfig{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHNSWStoreQueryNearest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "a", []float32{1, 0, 0, 0}, ChunkMeta{Content: "alpha"}))
	require.NoError(t, store.Upsert(ctx, "b", []float32{0, 1, 0, 0}, ChunkMeta{Content: "beta"}))
	require.NoError(t, store.Upsert(ctx, "c", []float32{0.9, 0.1, 0, 0}, ChunkMeta{Content: "gamma"}))
	assert.Equal(t, 3, store.Count())

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
	assert.Equal(t, "c", results[1].ChunkID)
	assert.Equal(t, "alpha", results[0].Meta.Content)
}

func TestHNSWStoreUpsertReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "a", []float32{1, 0, 0, 0}, ChunkMeta{Content: "old"}))
	require.NoError(t, store.Upsert(ctx, "a", []float32{0, 1, 0, 0}, ChunkMeta{Content: "new"}))
	assert.Equal(t, 1, store.Count())

	results, err := store.Query(ctx, []float32{0, 1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "new", results[0].Meta.Content)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
}

func TestHNSWStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "a", []float32{1, 0, 0, 0}, ChunkMeta{}))
	require.NoError(t, store.Upsert(ctx, "b", []float32{0, 1, 0, 0}, ChunkMeta{}))

	require.NoError(t, store.Delete(ctx, []string{"a", "missing"}))
	assert.Equal(t, 1, store.Count())

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ChunkID)
	}
}

func TestHNSWStoreDimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "a", []float32{1, 0}, ChunkMeta{})
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = store.Query(ctx, []float32{1, 0}, 5)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWStoreEmptyQuery(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStoreSaveLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	updated := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, "a", []float32{1, 0, 0, 0}, ChunkMeta{
		Content:   "alpha",
		Title:     "Alpha Doc",
		Owner:     "user-1",
		UpdatedAt: updated,
		Quality:   0.9,
	}))
	require.NoError(t, store.Upsert(ctx, "b", []float32{0, 1, 0, 0}, ChunkMeta{Content: "beta"}))

	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, store.Save(path))

	restored, err := NewHNSWStore(HNSWConfig{Dimensions: 4})
	require.NoError(t, err)
	defer restored.Close()
	require.NoError(t, restored.Load(path))

	assert.Equal(t, 2, restored.Count())
	results, err := restored.Query(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "Alpha Doc", results[0].Meta.Title)
	assert.True(t, results[0].Meta.UpdatedAt.Equal(updated))
}

func TestHNSWStoreClosed(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	err := store.Upsert(context.Background(), "a", []float32{1, 0, 0, 0}, ChunkMeta{})
	assert.Error(t, err)
	_, err = store.Query(context.Background(), []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
	assert.Zero(t, store.Count())
}

func TestHNSWStoreL2Metric(t *testing.T) {
	store, err := NewHNSWStore(HNSWConfig{Dimensions: 4, Metric: MetricL2})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	// Under L2 the vectors are stored unnormalized, so magnitude matters.
	require.NoError(t, store.Upsert(ctx, "near", []float32{1, 0, 0, 0}, ChunkMeta{}))
	require.NoError(t, store.Upsert(ctx, "far", []float32{10, 0, 0, 0}, ChunkMeta{}))

	results, err := store.Query(ctx, []float32{1.5, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "near", results[0].ChunkID)
	assert.Equal(t, "far", results[1].ChunkID)
	// 1/(1+distance) keeps scores in (0, 1], descending with distance.
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.InDelta(t, 1/(1+0.5), results[0].Similarity, 1e-5)
}

func TestHNSWStoreUnknownMetric(t *testing.T) {
	_, err := NewHNSWStore(HNSWConfig{Dimensions: 4, Metric: "dot"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")
}

func TestHNSWStoreSaveLoadKeepsMetric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	store, err := NewHNSWStore(HNSWConfig{Dimensions: 4, Metric: MetricL2})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "near", []float32{1, 0, 0, 0}, ChunkMeta{}))
	require.NoError(t, store.Upsert(ctx, "far", []float32{10, 0, 0, 0}, ChunkMeta{}))
	require.NoError(t, store.Save(path))
	require.NoError(t, store.Close())

	// A store opened with the default metric picks up L2 from the snapshot.
	restored, err := NewHNSWStore(HNSWConfig{Dimensions: 4})
	require.NoError(t, err)
	defer restored.Close()
	require.NoError(t, restored.Load(path))

	results, err := restored.Query(ctx, []float32{1.5, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ChunkID)
	assert.InDelta(t, 1/(1+0.5), results[0].Similarity, 1e-5)
}
