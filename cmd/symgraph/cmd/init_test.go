package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindex/symgraph/internal/config"
)

func TestInitCmd_WritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(dir, ".symgraph.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "semantic_weight")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig().Search.SemanticWeight, cfg.Search.SemanticWeight)
}

func TestInitCmd_RefusesToOverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.yaml"), []byte("version: 1\n"), 0o644))

	cmd := newInitCmd()
	cmd.SetArgs([]string{})
	require.Error(t, cmd.Execute())
}
