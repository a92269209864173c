// Package search implements the hybrid search engine: it fans queries out
// to the vector and lexical stores, normalizes and fuses their scores, and
// weights the result by each file's partition authority.
package search

import (
	"context"
	"time"
)

// SearchEngine is the query-side contract the CLI and any other caller use.
type SearchEngine interface {
	SearchSemantic(ctx context.Context, query string, opts Options) ([]*Result, error)
	SearchKeyword(ctx context.Context, query string, opts Options) ([]*Result, error)
	SearchHybrid(ctx context.Context, query string, opts Options) ([]*Result, error)
	Close() error
}

// Weights controls the relative contribution of semantic vs lexical scores
// in hybrid search.
type Weights struct {
	Semantic float64
	Lexical  float64
}

// DefaultWeights matches the spec's documented default.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.7, Lexical: 0.3}
}

// FusionMode selects how the semantic and lexical scores are combined
// before authority weighting.
type FusionMode string

const (
	// FusionMultiplicative computes final = (w_s*norm_s + w_l*norm_l) * authority_score.
	// This is the primary contract and the default.
	FusionMultiplicative FusionMode = "multiplicative"

	// FusionAdditiveLog computes final = w_s*norm_s + w_l*norm_l + log(1+authority_score),
	// an alternate blend that lets a highly relevant low-authority file still
	// surface, rather than being multiplicatively suppressed.
	FusionAdditiveLog FusionMode = "additive_log"
)

// Options configures one search call.
type Options struct {
	Limit       int // default 10
	PartitionID string // exact-match filter; empty means no filter
	Language    string // exact-match filter; empty means no filter
	Weights     *Weights // overrides config default for this call
}

// Result is one ranked hit.
type Result struct {
	FileID         string
	Path           string
	Language       string
	PartitionID    string
	AuthorityScore float64
	Score          float64 // final fused/weighted score
	SemanticScore  float64 // normalized, 0 if not fetched from the vector side
	LexicalScore   float64 // normalized, 0 if not fetched from the lexical side
	Snippet        string
	Partial        bool // true if the hybrid search's other side timed out and this result ranks on one source alone
}

// Config configures the engine's defaults and resource limits.
type Config struct {
	DefaultLimit   int
	MaxLimit       int
	DefaultWeights Weights
	FusionMode     FusionMode
	SearchTimeout  time.Duration
	QueryCacheSize int
	SnippetChars   int
}

// DefaultConfig returns the engine's out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:   10,
		MaxLimit:       100,
		DefaultWeights: DefaultWeights(),
		FusionMode:     FusionMultiplicative,
		SearchTimeout:  5 * time.Second,
		QueryCacheSize: 256,
		SnippetChars:   160,
	}
}

// fetchMultiple is the over-fetch factor applied to a hybrid search's k
// before truncating to the caller's requested limit, so that candidates
// ranked outside the top-k by one source alone still have a chance to
// surface once fused with the other.
const fetchMultiple = 4

// minFetch is the floor applied with fetchMultiple, per spec: K = max(k*4, 50).
const minFetch = 50

func fetchK(limit int) int {
	k := limit * fetchMultiple
	if k < minFetch {
		k = minFetch
	}
	return k
}
