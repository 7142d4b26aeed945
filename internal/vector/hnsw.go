package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Supported distance metrics.
const (
	MetricCosine = "cos"
	MetricL2     = "l2"
)

// HNSWConfig configures the HNSW-backed store.
type HNSWConfig struct {
	Dimensions int

	// Metric selects the distance function: "cos" (default) or "l2".
	Metric string

	// M is the maximum number of graph neighbors per node.
	M int

	// EfSearch is the search beam width.
	EfSearch int
}

// HNSWStore implements Store on the pure Go coder/hnsw graph. Under the
// cosine metric vectors are normalized on insert so graph distance is
// cosine distance.
type HNSWStore struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	cfg   HNSWConfig

	// String chunk IDs map to internal uint64 keys.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	meta    map[string]ChunkMeta
	nextKey uint64

	closed bool
}

// hnswSnapshot is the gob-persisted companion of the graph file.
type hnswSnapshot struct {
	IDMap   map[string]uint64
	Meta    map[string]ChunkMeta
	NextKey uint64
	Config  HNSWConfig
}

// NewHNSWStore creates an empty HNSW store.
func NewHNSWStore(cfg HNSWConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case MetricCosine:
		graph.Distance = hnsw.CosineDistance
	case MetricL2:
		graph.Distance = hnsw.EuclideanDistance
	default:
		return nil, fmt.Errorf("unknown metric %q (want %q or %q)", cfg.Metric, MetricCosine, MetricL2)
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		cfg:    cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		meta:   make(map[string]ChunkMeta),
	}, nil
}

var _ Store = (*HNSWStore)(nil)

// Upsert inserts or replaces the vector and metadata for id.
func (s *HNSWStore) Upsert(ctx context.Context, id string, vec []float32, meta ChunkMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vec) != s.cfg.Dimensions {
		return ErrDimensionMismatch{Expected: s.cfg.Dimensions, Got: len(vec)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	// Replacing an existing id uses lazy deletion: the old node stays in
	// the graph but loses its key mapping, so it never reaches results.
	if existingKey, exists := s.idMap[id]; exists {
		delete(s.keyMap, existingKey)
		delete(s.idMap, id)
	}

	key := s.nextKey
	s.nextKey++

	stored := make([]float32, len(vec))
	copy(stored, vec)
	if s.cfg.Metric == MetricCosine {
		normalizeInPlace(stored)
	}

	s.graph.Add(hnsw.MakeNode(key, stored))
	s.idMap[id] = key
	s.keyMap[key] = id
	s.meta[id] = meta
	return nil
}

// Query returns up to k nearest neighbors by descending similarity.
func (s *HNSWStore) Query(ctx context.Context, vec []float32, k int) ([]*StoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vec) != s.cfg.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.cfg.Dimensions, Got: len(vec)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if s.graph.Len() == 0 || len(s.idMap) == 0 {
		return []*StoreResult{}, nil
	}

	q := make([]float32, len(vec))
	copy(q, vec)
	if s.cfg.Metric == MetricCosine {
		normalizeInPlace(q)
	}

	// Overfetch to compensate for lazily deleted nodes still in the
	// graph.
	fetch := k + (s.graph.Len() - len(s.idMap))
	nodes := s.graph.Search(q, fetch)

	results := make([]*StoreResult, 0, k)
	for _, node := range nodes {
		id, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		distance := s.graph.Distance(q, node.Value)
		results = append(results, &StoreResult{
			ChunkID:    id,
			Similarity: s.similarity(distance),
			Meta:       s.meta[id],
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete removes ids from the store. Nodes stay in the graph without key
// mappings, matching the lazy deletion used by Upsert.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.meta, id)
		}
	}
	return nil
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Save persists the graph and metadata to path using temp-file-then-rename
// so a crash never leaves a half-written index.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return s.saveSnapshot(path + ".meta")
}

func (s *HNSWStore) saveSnapshot(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	snap := hnswSnapshot{
		IDMap:   s.idMap,
		Meta:    s.meta,
		NextKey: s.nextKey,
		Config:  s.cfg,
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores the graph and metadata persisted by Save.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer metaFile.Close()

	var snap hnswSnapshot
	if err := gob.NewDecoder(metaFile).Decode(&snap); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import needs an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	s.idMap = snap.IDMap
	s.meta = snap.Meta
	s.nextKey = snap.NextKey
	s.cfg = snap.Config
	if s.cfg.Metric == "" {
		s.cfg.Metric = MetricCosine
	}
	// The snapshot carries the metric the index was built with.
	if s.cfg.Metric == MetricL2 {
		s.graph.Distance = hnsw.EuclideanDistance
	} else {
		s.graph.Distance = hnsw.CosineDistance
	}
	s.keyMap = make(map[uint64]string, len(snap.IDMap))
	for id, key := range snap.IDMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// similarity converts a graph distance to a score in [0, 1] for L2 and
// [-1, 1] for cosine, higher meaning closer.
func (s *HNSWStore) similarity(distance float32) float64 {
	if s.cfg.Metric == MetricL2 {
		return 1 / (1 + float64(distance))
	}
	return 1 - float64(distance)
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / magnitude)
	}
}
