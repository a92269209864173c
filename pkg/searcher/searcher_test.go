package searcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindex/symgraph/internal/config"
	"github.com/codeindex/symgraph/pkg/indexer"
)

func fallbackConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embeddings.Provider = "fallback"
	return cfg
}

func buildIndexedRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	src := "package sample\n\nfunc RateLimiter() bool {\n\treturn true\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0o644))

	ix, err := indexer.Open(context.Background(), root, fallbackConfig())
	require.NoError(t, err)
	_, err = ix.IndexRepository(context.Background(), indexer.Options{})
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	return root
}

func TestOpen_WithoutIndexReturnsError(t *testing.T) {
	root := t.TempDir()
	_, err := Open(context.Background(), root, fallbackConfig())
	require.Error(t, err)
}

func TestSearchKeyword_FindsIndexedSymbol(t *testing.T) {
	root := buildIndexedRepo(t)

	sr, err := Open(context.Background(), root, fallbackConfig())
	require.NoError(t, err)
	defer sr.Close()

	results, err := sr.SearchKeyword(context.Background(), "RateLimiter", Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "sample.go", filepath.Base(results[0].Path))
}

func TestSearchHybrid_ReturnsRankedResults(t *testing.T) {
	root := buildIndexedRepo(t)

	sr, err := Open(context.Background(), root, fallbackConfig())
	require.NoError(t, err)
	defer sr.Close()

	results, err := sr.SearchHybrid(context.Background(), "rate limiter", Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}
