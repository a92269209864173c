package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore over coder/hnsw, a pure-Go HNSW
// graph. File IDs are mapped to the graph's internal uint64 keys.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	idMap   map[string]uint64 // file id -> internal key
	keyMap  map[uint64]string // internal key -> file id
	meta    map[string]VectorMetadata
	nextKey uint64

	closed bool
}

// hnswPersisted is the gob-encoded sidecar holding everything the graph
// export/import doesn't capture.
type hnswPersisted struct {
	IDMap   map[string]uint64
	Meta    map[string]VectorMetadata
	NextKey uint64
	Config  VectorStoreConfig
}

// NewHNSWStore creates a new HNSW-backed vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:   graph,
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		meta:    make(map[string]VectorMetadata),
		nextKey: 0,
	}, nil
}

var _ VectorStore = (*HNSWStore)(nil)

// Upsert replaces any prior vector for each fileID.
func (s *HNSWStore) Upsert(ctx context.Context, fileIDs []string, vectors [][]float32, metadata []VectorMetadata) error {
	if len(fileIDs) == 0 {
		return nil
	}
	if len(fileIDs) != len(vectors) || len(fileIDs) != len(metadata) {
		return fmt.Errorf("fileIDs, vectors, metadata length mismatch: %d/%d/%d", len(fileIDs), len(vectors), len(metadata))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range fileIDs {
		// Lazy deletion on replace: coder/hnsw has a known issue deleting the
		// last node in the graph, so orphan the old mapping instead of
		// removing it from the graph.
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
		s.meta[id] = metadata[i]
	}

	return nil
}

// Search finds up to k nearest neighbours, deterministically tie-broken by
// file_id ascending.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalizedQuery)
	}

	// Over-fetch to survive orphaned (lazily deleted) nodes before truncating.
	nodes := s.graph.Search(normalizedQuery, k*2+8)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := s.graph.Distance(normalizedQuery, node.Value)
		results = append(results, &VectorResult{
			FileID:   id,
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FileID < results[j].FileID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes vectors by file id using lazy deletion.
func (s *HNSWStore) Delete(ctx context.Context, fileIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, id := range fileIDs {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.meta, id)
		}
	}
	return nil
}

// Metadata returns the stored metadata for a file id.
func (s *HNSWStore) Metadata(fileID string) (VectorMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meta[fileID]
	return m, ok
}

// AllIDs returns all vector IDs currently live in the store.
func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	return ids
}

// Contains checks if a file id has a live vector.
func (s *HNSWStore) Contains(fileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.idMap[fileID]
	return exists
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Dimension returns the pinned vector width.
func (s *HNSWStore) Dimension() int {
	return s.config.Dimensions
}

// Save persists the graph and sidecar metadata atomically (temp + rename).
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
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

	return s.saveSidecar(path + ".meta")
}

func (s *HNSWStore) saveSidecar(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	payload := hnswPersisted{
		IDMap:   s.idMap,
		Meta:    s.meta,
		NextKey: s.nextKey,
		Config:  s.config,
	}

	if err := gob.NewEncoder(file).Encode(payload); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("sidecar_close_failed", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads the graph and sidecar metadata from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := s.loadSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *HNSWStore) loadSidecar(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("sidecar_close_failed", slog.String("error", err.Error()))
		}
	}()

	var payload hnswPersisted
	if err := gob.NewDecoder(file).Decode(&payload); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	s.idMap = payload.IDMap
	s.meta = payload.Meta
	if s.meta == nil {
		s.meta = make(map[string]VectorMetadata)
	}
	s.nextKey = payload.NextKey
	s.config = payload.Config
	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// ValidateIntegrity probes the graph for basic structural consistency
//.
func (s *HNSWStore) ValidateIntegrity() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	if s.graph == nil {
		return fmt.Errorf("vector store graph is nil")
	}
	for id, key := range s.idMap {
		if mapped, ok := s.keyMap[key]; !ok || mapped != id {
			return fmt.Errorf("vector store id mapping inconsistent for %q", id)
		}
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

// ReadHNSWStoreDimensions reads the pinned dimension from an on-disk store's
// sidecar without loading the whole graph. Returns 0 if absent (fresh start).
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	file, err := os.Open(vectorPath + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open hnsw metadata: %w", err)
	}
	defer file.Close()

	var payload hnswPersisted
	if err := gob.NewDecoder(file).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode hnsw metadata: %w", err)
	}
	return payload.Config.Dimensions, nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance into a [0,1]-ish similarity score.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
