package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/internal/embed"
	"github.com/codeindex/symgraph/internal/index"
	"github.com/codeindex/symgraph/internal/partition"
	"github.com/codeindex/symgraph/internal/store"
)

// Options configures an indexing run. It is a re-export of the internal
// orchestrator's options so callers never need to import internal/index.
type Options = index.Options

// Stats summarises an indexing run.
type Stats = index.IndexStats

// FileError records a single file's extraction or embedding failure.
type FileError = index.FileError

// PartitionResult is a re-export of the partition classifier's result so
// callers never need to import internal/partition directly.
type PartitionResult = partition.Result

const (
	vectorSnapshotFile  = "vectors.gob"
	lexicalSnapshotFile = "lexical.gob"
	metadataDBFile      = "metadata.db"
)

// Indexer is the public handle for indexing one repository. Construct it
// with Open and release it with Close.
type Indexer struct {
	root    string
	dataDir string

	metadata store.MetadataStore
	vector   store.VectorStore
	lexical  store.BM25Index
	embedder embed.Embedder

	orch *index.Orchestrator
}

// Open loads (or initializes) the stores for root under <root>/.symgraph/
// and wires them into an orchestrator per cfg.
func Open(ctx context.Context, root string, cfg *config.Config) (*Indexer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	dataDir := filepath.Join(root, ".symgraph")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("indexer: create data dir: %w", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.Config{
		Provider:   embed.ParseProvider(cfg.Embeddings.Provider),
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: construct embedder: %w", err)
	}

	metadataPath := filepath.Join(dataDir, metadataDBFile)
	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("indexer: open metadata store: %w", err)
	}

	vectorPath := filepath.Join(dataDir, vectorSnapshotFile)
	dims, err := store.ReadHNSWStoreDimensions(vectorPath)
	if err != nil {
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("indexer: read vector store dimensions: %w", err)
	}
	if dims == 0 {
		dims = embedder.Dimensions()
	}
	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("indexer: create vector store: %w", err)
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vector.Load(vectorPath); err != nil {
			metadata.Close()
			embedder.Close()
			return nil, fmt.Errorf("indexer: load vector snapshot: %w", err)
		}
	}

	lexical := store.NewMemoryBM25Index(store.BM25Config{
		K1:             cfg.Search.BM25K1,
		B:              cfg.Search.BM25B,
		StopWords:      store.DefaultCodeStopWords,
		MinTokenLength: 2,
	})
	lexicalPath := filepath.Join(dataDir, lexicalSnapshotFile)
	if _, statErr := os.Stat(lexicalPath); statErr == nil {
		if err := lexical.Load(lexicalPath); err != nil {
			vector.Close()
			metadata.Close()
			embedder.Close()
			return nil, fmt.Errorf("indexer: load lexical snapshot: %w", err)
		}
	}

	orch, err := index.NewOrchestrator(root, dataDir, metadata, vector, lexical, embedder)
	if err != nil {
		lexical.Close()
		vector.Close()
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("indexer: create orchestrator: %w", err)
	}

	return &Indexer{
		root:     root,
		dataDir:  dataDir,
		metadata: metadata,
		vector:   vector,
		lexical:  lexical,
		embedder: embedder,
		orch:     orch,
	}, nil
}

// IndexRepository walks the whole repository and indexes every eligible
// file, then flushes the vector and lexical snapshots to disk.
func (ix *Indexer) IndexRepository(ctx context.Context, opts Options) (*Stats, error) {
	stats, err := ix.orch.IndexRepository(ctx, opts)
	if err != nil {
		return stats, err
	}
	return stats, ix.Flush()
}

// IndexFiles indexes only the given paths, then flushes the vector and
// lexical snapshots to disk.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string, opts Options) (*Stats, error) {
	stats, err := ix.orch.IndexFiles(ctx, paths, opts)
	if err != nil {
		return stats, err
	}
	return stats, ix.Flush()
}

// Stats returns the current embedding-status breakdown and lexical index
// summary.
func (ix *Indexer) Stats(ctx context.Context) (map[store.EmbeddingStatus]int, *store.IndexStats, error) {
	return ix.orch.Stats(ctx)
}

// ClassifyPath reports the partition id, authority score, and matching
// reason for a repository-relative path, without requiring the path to
// have been indexed. Classification is a pure function of the path string,
// so this never touches the metadata, vector, or lexical stores.
func (ix *Indexer) ClassifyPath(path string) PartitionResult {
	return partition.Classify(path)
}

// Flush persists the in-memory vector and lexical indexes to disk without
// closing the Indexer.
func (ix *Indexer) Flush() error {
	if err := ix.vector.Save(filepath.Join(ix.dataDir, vectorSnapshotFile)); err != nil {
		return fmt.Errorf("indexer: save vector snapshot: %w", err)
	}
	if err := ix.lexical.Save(filepath.Join(ix.dataDir, lexicalSnapshotFile)); err != nil {
		return fmt.Errorf("indexer: save lexical snapshot: %w", err)
	}
	return nil
}

// Close flushes the in-memory stores to disk and releases every underlying
// resource.
func (ix *Indexer) Close() error {
	flushErr := ix.Flush()

	var errs []error
	if err := ix.orch.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := ix.lexical.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := ix.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := ix.metadata.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := ix.embedder.Close(); err != nil {
		errs = append(errs, err)
	}

	if flushErr != nil {
		return flushErr
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexer: close: %w", errs[0])
	}
	return nil
}
