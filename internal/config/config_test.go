package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Search.LexicalWeight)
	assert.Equal(t, "multiplicative", cfg.Search.FusionMode)
	assert.Equal(t, 10, cfg.Search.DefaultK)
	assert.Equal(t, "http", cfg.Embeddings.Provider)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, runtime.NumCPU(), cfg.Indexing.MaxWorkers)
	assert.Contains(t, cfg.Paths.Exclude, "**/node_modules/**")

	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Search, cfg.Search)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
search:
  semantic_weight: 0.5
  lexical_weight: 0.5
embeddings:
  model: custom-model
  batch_size: 64
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.yaml"), []byte(yaml), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.5, cfg.Search.LexicalWeight)
	assert.Equal(t, "custom-model", cfg.Embeddings.Model)
	assert.Equal(t, 64, cfg.Embeddings.BatchSize)
	// Unset fields keep their defaults.
	assert.Equal(t, "multiplicative", cfg.Search.FusionMode)
}

func TestLoad_YmlFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.yml"), []byte("search:\n  default_k: 5\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.DefaultK)
}

func TestLoad_EnvOverridesTakeHighestPrecedence(t *testing.T) {
	dir := t.TempDir()
	yaml := "search:\n  semantic_weight: 0.5\n  lexical_weight: 0.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.yaml"), []byte(yaml), 0644))

	t.Setenv("SYMGRAPH_SEMANTIC_WEIGHT", "0.9")
	t.Setenv("SYMGRAPH_LEXICAL_WEIGHT", "0.1")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.1, cfg.Search.LexicalWeight)
}

func TestLoad_InvalidWeightSumIsRejected(t *testing.T) {
	dir := t.TempDir()
	yaml := "search:\n  semantic_weight: 0.9\n  lexical_weight: 0.9\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.yaml"), []byte(yaml), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_RejectsOutOfRangeWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.SemanticWeight = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownFusionMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.FusionMode = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownEmbeddingsProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embeddings.Provider = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".symgraph.yaml")

	cfg := DefaultConfig()
	cfg.Embeddings.Model = "roundtrip-model"
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip-model", loaded.Embeddings.Model)
}

func TestFindProjectRoot_FindsGitDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRoot_FindsConfigFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".symgraph.yaml"), []byte("version: 1\n"), 0644))
	nested := filepath.Join(root, "a")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRoot_FallsBackToStartDir(t *testing.T) {
	dir := t.TempDir()

	found, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, found)
}
