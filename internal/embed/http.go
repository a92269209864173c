package embed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// HTTPEmbedderConfig configures a generic HTTP JSON embedding service, not
// tied to any single vendor beyond the OpenAI embeddings request/response
// shape.
type HTTPEmbedderConfig struct {
	// BaseURL is the embedding service's API base, e.g. "http://localhost:8080/v1".
	BaseURL string

	// APIKey is sent as a bearer token. Many self-hosted services ignore it.
	APIKey string

	// Model is the model name passed in the embeddings request.
	Model string

	// Dimensions is the expected vector width. If zero, it is detected from
	// the first embedding call.
	Dimensions int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Retry configures the bounded exponential backoff applied around each
	// batch call.
	Retry RetryConfig
}

// HTTPEmbedder adapts an OpenAI-compatible embeddings endpoint to the
// Embedder interface.
type HTTPEmbedder struct {
	client *openai.Client
	cfg    HTTPEmbedderConfig

	mu     sync.RWMutex
	closed bool
	dims   int
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates a new HTTP embedder against an OpenAI-compatible
// embeddings endpoint. Dimensions are auto-detected with a one-off probe
// call if cfg.Dimensions is zero.
func NewHTTPEmbedder(ctx context.Context, cfg HTTPEmbedderConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http embedder: base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("http embedder: model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     10 * time.Second,
		},
	}

	e := &HTTPEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		dims:   cfg.Dimensions,
	}

	if e.dims == 0 {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		vec, err := e.embedOne(probeCtx, "dimension probe")
		if err != nil {
			return nil, fmt.Errorf("http embedder: failed to detect dimensions: %w", err)
		}
		e.dims = len(vec)
	}

	return e, nil
}

func (e *HTTPEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HTTPEmbedder) embedMany(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	call := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		r, err := e.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(e.cfg.Model),
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	if err := WithRetry(ctx, e.cfg.Retry, call); err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response mismatch: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings response index %d out of range", d.Index)
		}
		out[d.Index] = normalizeVector(d.Embedding)
	}
	return out, nil
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("http embedder is closed")
	}
	e.mu.RUnlock()

	return e.embedOne(ctx, text)
}

// EmbedBatch embeds a batch of texts in input order, chunking to MaxBatchSize.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("http embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := e.embedMany(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch [%d:%d]: %w", start, end, err)
		}
		results = append(results, chunk...)
	}
	return results, nil
}

// Dimensions returns the embedding width.
func (e *HTTPEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the configured model name.
func (e *HTTPEmbedder) ModelName() string {
	return e.cfg.Model
}

// Ready probes the service with a minimal embedding call.
func (e *HTTPEmbedder) Ready(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	_, err := e.embedOne(probeCtx, "ready probe")
	if err != nil {
		slog.Debug("embedder_not_ready", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Close releases pooled connections.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
