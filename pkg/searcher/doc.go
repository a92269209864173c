// Package searcher is the public entry point for querying an already
// indexed repository.
//
// It opens the same metadata, vector, and lexical stores the indexer
// package writes (read-only, no snapshot is modified) and hands them to
// the internal hybrid search engine, so a caller never needs to import
// internal/store or internal/search directly.
//
// # Usage
//
//	sr, err := searcher.Open(ctx, repoRoot, cfg)
//	if err != nil {
//	    return err
//	}
//	defer sr.Close()
//
//	results, err := sr.SearchHybrid(ctx, "token bucket rate limiter", searcher.Options{Limit: 10})
package searcher
