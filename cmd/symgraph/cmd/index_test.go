package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// withFallbackRepo chdirs into a fresh temp repo (with one Go file and a
// .git directory so FindProjectRoot anchors there) configured to use the
// deterministic local embedder, and restores the original directory and
// environment on cleanup.
func withFallbackRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	src := "package sample\n\nfunc RateLimiter(n int) bool {\n\treturn n > 0\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0o644))

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Setenv("SYMGRAPH_EMBEDDINGS_PROVIDER", "fallback")
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	return root
}

func TestIndexCmd_IndexesRepository(t *testing.T) {
	withFallbackRepo(t)

	cmd := newIndexCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	require.Contains(t, buf.String(), "total")
}

func TestSearchCmd_FindsIndexedSymbolAfterIndexing(t *testing.T) {
	withFallbackRepo(t)

	indexCmd := newIndexCmd()
	indexCmd.SetArgs([]string{})
	require.NoError(t, indexCmd.Execute())

	searchCmd := newSearchCmd()
	buf := new(bytes.Buffer)
	searchCmd.SetOut(buf)
	searchCmd.SetArgs([]string{"--mode", "keyword", "RateLimiter"})

	require.NoError(t, searchCmd.Execute())
	require.Contains(t, buf.String(), "sample.go")
}

func TestStatsCmd_ReportsEmbeddedCountAfterIndexing(t *testing.T) {
	withFallbackRepo(t)

	indexCmd := newIndexCmd()
	indexCmd.SetArgs([]string{})
	require.NoError(t, indexCmd.Execute())

	statsCmd := newStatsCmd()
	buf := new(bytes.Buffer)
	statsCmd.SetOut(buf)
	statsCmd.SetArgs([]string{})

	require.NoError(t, statsCmd.Execute())
	require.Contains(t, buf.String(), "embedded")
}
