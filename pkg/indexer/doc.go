// Package indexer is the public entry point for indexing a repository.
//
// It wires the metadata, vector, and lexical stores together with an
// embedder and hands the result to the internal orchestrator, so a caller
// never needs to import internal/store or internal/index directly. The
// stores are plain Go values: swapping SQLite for another metadata backend,
// or HNSW for another vector index, only ever touches this package.
//
// # Usage
//
//	ix, err := indexer.Open(ctx, repoRoot, cfg)
//	if err != nil {
//	    return err
//	}
//	defer ix.Close()
//
//	stats, err := ix.IndexRepository(ctx, indexer.Options{})
//
// # Persistence
//
// The vector and lexical stores are in-memory indexes backed by gob
// snapshots. Open loads any existing snapshot under <root>/.symgraph/, and
// Close (or an explicit Flush) writes it back. A process that indexes and
// exits without closing the Indexer loses the run's work.
package indexer
