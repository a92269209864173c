package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindex/symgraph/internal/config"
)

func fallbackConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embeddings.Provider = "fallback"
	return cfg
}

func writeSampleRepo(t *testing.T, root string) {
	t.Helper()
	src := "package sample\n\nfunc Greet(name string) string {\n\treturn \"hello \" + name\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0o644))
}

func TestOpen_IndexRepository_PersistsAcrossReopen(t *testing.T) {
	root := t.TempDir()
	writeSampleRepo(t, root)
	ctx := context.Background()

	ix, err := Open(ctx, root, fallbackConfig())
	require.NoError(t, err)

	stats, err := ix.IndexRepository(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Embedded)
	require.NoError(t, ix.Close())

	statuses, lexStats, err := func() (map[string]int, int, error) {
		ix2, err := Open(ctx, root, fallbackConfig())
		if err != nil {
			return nil, 0, err
		}
		defer ix2.Close()
		s, ls, err := ix2.Stats(ctx)
		if err != nil {
			return nil, 0, err
		}
		byName := make(map[string]int)
		for k, v := range s {
			byName[string(k)] = v
		}
		return byName, ls.DocumentCount, nil
	}()
	require.NoError(t, err)
	require.Equal(t, 1, lexStats)
	require.Equal(t, 1, statuses["embedded"])
}

func TestOpen_NilConfigUsesDefaults(t *testing.T) {
	root := t.TempDir()
	writeSampleRepo(t, root)

	ix, err := Open(context.Background(), root, nil)
	require.NoError(t, err)
	defer ix.Close()
}

func TestClassifyPath_ReturnsPartitionAndAuthority(t *testing.T) {
	root := t.TempDir()
	writeSampleRepo(t, root)

	ix, err := Open(context.Background(), root, fallbackConfig())
	require.NoError(t, err)
	defer ix.Close()

	result := ix.ClassifyPath("whiteboard/scratch-notes.md")
	require.Equal(t, "whiteboard", result.PartitionID)
	require.InDelta(t, 0.10, result.AuthorityScore, 1e-9)
	require.NotEmpty(t, result.Reason)
}

func TestIndexFiles_RestrictsToGivenPaths(t *testing.T) {
	root := t.TempDir()
	writeSampleRepo(t, root)
	other := "package sample\n\nfunc Other() int { return 1 }\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "other.go"), []byte(other), 0o644))

	ix, err := Open(context.Background(), root, fallbackConfig())
	require.NoError(t, err)
	defer ix.Close()

	stats, err := ix.IndexFiles(context.Background(), []string{filepath.Join(root, "sample.go")}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
}
