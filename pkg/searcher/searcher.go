package searcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/internal/embed"
	"github.com/codeindex/symgraph/internal/search"
	"github.com/codeindex/symgraph/internal/store"
)

// Options configures one search call. A re-export of the internal engine's
// options so callers never need to import internal/search.
type Options = search.Options

// Result is one ranked hit.
type Result = search.Result

// Weights controls the relative contribution of semantic vs lexical scores.
type Weights = search.Weights

const (
	vectorSnapshotFile  = "vectors.gob"
	lexicalSnapshotFile = "lexical.gob"
	metadataDBFile      = "metadata.db"
)

// Searcher is the public handle for querying one indexed repository.
// Construct it with Open and release it with Close.
type Searcher struct {
	metadata store.MetadataStore
	vector   store.VectorStore
	lexical  store.BM25Index
	embedder embed.Embedder

	engine *search.Engine
}

// Open reads the stores under <root>/.symgraph/ written by pkg/indexer and
// wires them into a hybrid search engine per cfg. It returns an error if
// the repository hasn't been indexed yet.
func Open(ctx context.Context, root string, cfg *config.Config) (*Searcher, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	dataDir := filepath.Join(root, ".symgraph")

	metadataPath := filepath.Join(dataDir, metadataDBFile)
	if _, err := os.Stat(metadataPath); err != nil {
		return nil, fmt.Errorf("searcher: repository not indexed at %s: %w", root, err)
	}
	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("searcher: open metadata store: %w", err)
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
		metadata.Close()
		return nil, fmt.Errorf("searcher: construct embedder: %w", err)
	}

	vectorPath := filepath.Join(dataDir, vectorSnapshotFile)
	dims, err := store.ReadHNSWStoreDimensions(vectorPath)
	if err != nil {
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("searcher: read vector store dimensions: %w", err)
	}
	if dims == 0 {
		dims = embedder.Dimensions()
	}
	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("searcher: create vector store: %w", err)
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vector.Load(vectorPath); err != nil {
			metadata.Close()
			embedder.Close()
			return nil, fmt.Errorf("searcher: load vector snapshot: %w", err)
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
			return nil, fmt.Errorf("searcher: load lexical snapshot: %w", err)
		}
	}

	engineCfg := search.DefaultConfig()
	engineCfg.DefaultLimit = cfg.Search.DefaultK
	engineCfg.DefaultWeights = search.Weights{
		Semantic: cfg.Search.SemanticWeight,
		Lexical:  cfg.Search.LexicalWeight,
	}
	engineCfg.FusionMode = search.FusionMode(cfg.Search.FusionMode)

	engine, err := search.NewEngine(metadata, vector, lexical, embedder, search.WithConfig(engineCfg))
	if err != nil {
		lexical.Close()
		vector.Close()
		metadata.Close()
		embedder.Close()
		return nil, fmt.Errorf("searcher: create engine: %w", err)
	}

	return &Searcher{
		metadata: metadata,
		vector:   vector,
		lexical:  lexical,
		embedder: embedder,
		engine:   engine,
	}, nil
}

// SearchSemantic ranks by normalized vector similarity alone.
func (sr *Searcher) SearchSemantic(ctx context.Context, query string, opts Options) ([]*Result, error) {
	return sr.engine.SearchSemantic(ctx, query, opts)
}

// SearchKeyword ranks by normalized BM25 score alone.
func (sr *Searcher) SearchKeyword(ctx context.Context, query string, opts Options) ([]*Result, error) {
	return sr.engine.SearchKeyword(ctx, query, opts)
}

// SearchHybrid fuses semantic and lexical scores, weighted by partition
// authority.
func (sr *Searcher) SearchHybrid(ctx context.Context, query string, opts Options) ([]*Result, error) {
	return sr.engine.SearchHybrid(ctx, query, opts)
}

// Close releases every underlying resource. It never writes to the
// on-disk snapshots; use pkg/indexer to update the index.
func (sr *Searcher) Close() error {
	var errs []error
	if err := sr.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := sr.lexical.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := sr.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := sr.metadata.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := sr.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("searcher: close: %w", errs[0])
	}
	return nil
}
