// Package embed adapts an external embedding service into the fixed-dimension
// batch Embedder contract the indexer and search engine depend on.
package embed

import (
	"context"
	"math"
	"time"
)

// Batch and timeout defaults.
const (
	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize caps batch size to bound request payload and memory.
	MaxBatchSize = 256

	// DefaultBatchSize is used when callers don't specify one.
	DefaultBatchSize = 32

	// DefaultRequestTimeout bounds a single embedder HTTP call.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxRetries is the per-batch retry budget.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the base of the bounded exponential backoff.
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultRetryMaxDelay caps the backoff delay.
	DefaultRetryMaxDelay = 8 * time.Second
)

// FallbackModelID tags vectors produced by the local hashed-feature fallback
// embedder so they can never be silently mixed with a real model's vectors.
const FallbackModelID = "local-hashed-fallback-v1"

// FallbackDimensions is the vector width produced by the fallback embedder.
const FallbackDimensions = 768

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds a batch of texts in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width this embedder produces.
	Dimensions() int

	// ModelName identifies the model/fallback generating these vectors.
	// Used as the embedding_model_id component of the at-most-once key.
	ModelName() string

	// Ready reports whether the embedder can serve requests. The HTTP
	// embedder probes its backing service with a minimal embedding call.
	Ready(ctx context.Context) bool

	Close() error
}

// normalizeVector normalizes a vector to unit length, leaving zero vectors untouched.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
