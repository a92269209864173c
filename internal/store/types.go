// Package store provides the three persistence backends the indexer and
// search engine depend on: a SQLite metadata store (C6), an HNSW vector
// store (C7), and a BM25 lexical store (C8).
package store

import (
	"context"
	"fmt"
	"time"
)

// EmbeddingStatus is the lifecycle state of a file's embedding.
type EmbeddingStatus string

const (
	EmbeddingStatusPending  EmbeddingStatus = "pending"
	EmbeddingStatusEmbedded EmbeddingStatus = "embedded"
	EmbeddingStatusFailed   EmbeddingStatus = "failed"
)

// SymbolKind is the type of a code symbol.
type SymbolKind string

const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindType      SymbolKind = "type"
	SymbolKindEnum      SymbolKind = "enum"
	SymbolKindVariable  SymbolKind = "variable"
)

// File is the durable record for a repository-relative path.
type File struct {
	FileID         string // stable hash of canonical path
	Path           string // canonical repository-relative path
	Language       string
	ContentHash    string // hash of raw bytes
	Size           int64
	MTime          time.Time
	PartitionID    string
	AuthorityScore float64
	EmbeddingText  string
	Status         EmbeddingStatus
	EmbeddingModel string
	IndexedAt      time.Time
}

// Symbol is a named declaration extracted from a file.
type Symbol struct {
	SymbolID       string
	FileID         string
	Name           string
	Kind           SymbolKind
	Line           int
	Column         int
	IsExported     bool
	ParentSymbolID string // set for methods; empty otherwise
}

// ImportEdge is a module dependency extracted from a file.
type ImportEdge struct {
	FileID       string
	ModulePath   string
	ImportedName string // empty or "*" for wildcard/namespace imports
	IsDefault    bool
}

// IndexCheckpoint is resumable indexing progress state.
type IndexCheckpoint struct {
	Stage         string // "scanning"|"chunking"|"embedding"|"indexing"|"complete"
	Total         int
	EmbeddedCount int
	Timestamp     time.Time
	EmbedderModel string
}

// MetadataStore persists file records, symbols, imports, and embedding-status
// transitions.
type MetadataStore interface {
	// UpsertFile replaces the file row and all of its symbols/imports atomically
	// from the caller's perspective.
	UpsertFile(ctx context.Context, file *File, symbols []*Symbol, imports []*ImportEdge) error

	GetFile(ctx context.Context, fileID string) (*File, error)
	GetFileByPath(ctx context.Context, path string) (*File, error)

	// ListPending returns files with EmbeddingStatus = pending, oldest first.
	ListPending(ctx context.Context, limit int) ([]*File, error)

	// ListByPartition returns all files assigned to a partition.
	ListByPartition(ctx context.Context, partitionID string) ([]*File, error)

	// ListAllPaths returns every tracked path, for change-detection comparison.
	ListAllPaths(ctx context.Context) (map[string]*File, error)

	// MarkEmbedded transitions a file to embedded with the model that produced
	// the vector.
	MarkEmbedded(ctx context.Context, fileID, embeddingModel string) error

	// MarkFailed transitions a file to failed; retried on the next run.
	MarkFailed(ctx context.Context, fileID string) error

	// DeleteFile cascades to symbols and imports.
	DeleteFile(ctx context.Context, fileID string) error

	GetSymbols(ctx context.Context, fileID string) ([]*Symbol, error)
	SearchSymbols(ctx context.Context, name string, limit int) ([]*Symbol, error)

	// Stats returns per-status file counts.
	Stats(ctx context.Context) (map[EmbeddingStatus]int, error)

	SaveCheckpoint(ctx context.Context, cp *IndexCheckpoint) error
	LoadCheckpoint(ctx context.Context) (*IndexCheckpoint, error)
	ClearCheckpoint(ctx context.Context) error

	// Truncate empties the store for force_clean recovery.
	Truncate(ctx context.Context) error

	// ValidateIntegrity probes the store for corruption.
	ValidateIntegrity(ctx context.Context) error

	Close() error
}

// ErrDimensionMismatch indicates a vector write didn't match the collection's
// pinned dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: collection is %d-dimensional, got %d (run index with force_clean to rebuild)", e.Expected, e.Got)
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	FileID   string
	Distance float32 // cosine distance, lower is more similar
	Score    float32 // normalized similarity derived from Distance
}

// VectorMetadata is the minimal metadata stored alongside each vector, used
// for post-fetch filtering.
type VectorMetadata struct {
	PartitionID    string
	AuthorityScore float64
	Path           string
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" or "l2"
	M              int    // HNSW max connections per layer
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible HNSW defaults.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides nearest-neighbour search over fixed-dimension vectors
// keyed by file id.
type VectorStore interface {
	// Upsert replaces any prior vector for each fileID.
	Upsert(ctx context.Context, fileIDs []string, vectors [][]float32, metadata []VectorMetadata) error

	Delete(ctx context.Context, fileIDs []string) error

	// Search returns up to k nearest neighbours by cosine (or configured metric)
	// distance, with deterministic file_id-ascending tie-break.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	Metadata(fileID string) (VectorMetadata, bool)
	AllIDs() []string
	Contains(fileID string) bool
	Count() int
	Dimension() int

	Save(path string) error
	Load(path string) error

	// ValidateIntegrity probes the store for corruption.
	ValidateIntegrity() error

	Close() error
}

// Document is a file's tokenised lexical representation for the BM25 index.
type Document struct {
	FileID         string
	Path           string
	Language       string
	SymbolNames    []string
	PartitionID    string
	AuthorityScore float64
}

// BM25Result is a single lexical search hit.
type BM25Result struct {
	FileID string
	Score  float64
}

// IndexStats summarises a BM25 index's contents.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Config configures the lexical index's scoring parameters.
type BM25Config struct {
	K1             float64
	B              float64
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns the default k1/b.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords are common identifiers filtered from the lexical index.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// BM25Index provides keyword search over tokenised symbol names and file
// paths.
type BM25Index interface {
	// Upsert replaces any prior document for doc.FileID.
	Upsert(ctx context.Context, docs []*Document) error

	Delete(ctx context.Context, fileIDs []string) error

	// Search returns up to k results with deterministic file_id tie-break,
	// scores raw (not yet min-max normalized; callers in C10 normalize).
	Search(ctx context.Context, query string, k int) ([]*BM25Result, error)

	AllIDs() ([]string, error)
	Stats() *IndexStats

	Save(path string) error
	Load(path string) error

	// ValidateIntegrity probes the store for corruption.
	ValidateIntegrity() error

	Close() error
}
