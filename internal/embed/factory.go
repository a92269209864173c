package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType selects which Embedder implementation NewEmbedder constructs.
type ProviderType string

const (
	// ProviderHTTP talks to an OpenAI-compatible HTTP embeddings endpoint.
	ProviderHTTP ProviderType = "http"

	// ProviderFallback uses the deterministic local hashed-feature embedder.
	// Never selected by default; must be explicitly requested.
	ProviderFallback ProviderType = "fallback"
)

// Config collects the settings needed to construct any embedder, mirroring
// the fields exposed in the project config file.
type Config struct {
	Provider   ProviderType
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	CacheSize  int
	// DisableCache skips the LRU query-embedding cache wrapper.
	DisableCache bool
}

// NewEmbedder constructs an Embedder per cfg.Provider.
//
// SYMGRAPH_EMBED_CACHE=false disables the query-embedding cache regardless
// of cfg.DisableCache.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var embedder Embedder
	var err error

	switch cfg.Provider {
	case ProviderFallback:
		embedder = NewFallbackEmbedder()

	case ProviderHTTP, "":
		embedder, err = NewHTTPEmbedder(ctx, HTTPEmbedderConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Retry:      DefaultRetryConfig(),
		})

	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}

	if err != nil {
		return nil, err
	}

	if !cfg.DisableCache && !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, cfg.CacheSize)
	}

	return embedder, nil
}

// isCacheDisabled checks the environment override for the query cache.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("SYMGRAPH_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// ParseProvider converts a config string to a ProviderType, defaulting to
// ProviderHTTP for anything unrecognized (the fallback embedder is opt-in
// only, never a silent default).
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fallback", "static", "local":
		return ProviderFallback
	default:
		return ProviderHTTP
	}
}

// EmbedderInfo summarizes a constructed embedder for status/diagnostic output.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Ready      bool
}

// GetInfo inspects an embedder, unwrapping a CachedEmbedder if present.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}

	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Ready:      embedder.Ready(ctx),
	}

	switch inner.(type) {
	case *FallbackEmbedder:
		info.Provider = ProviderFallback
	default:
		info.Provider = ProviderHTTP
	}

	return info
}

// MustNewEmbedder creates an embedder and panics on failure.
// Use only in tests or initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, cfg Config) Embedder {
	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
