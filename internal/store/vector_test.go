package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWStore_UpsertAndSearch(t *testing.T) {
	store, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx,
		[]string{"f1", "f2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}},
		[]VectorMetadata{{PartitionID: "project", AuthorityScore: 0.35}, {PartitionID: "dom0", AuthorityScore: 0.95}},
	))

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "f1", results[0].FileID)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	store, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)

	err = store.Upsert(context.Background(), []string{"f1"}, [][]float32{{1, 0}}, []VectorMetadata{{}})
	require.Error(t, err)
	var mismatch ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 0, store.Count())
}

func TestHNSWStore_DeleteAndContains(t *testing.T) {
	store, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []string{"f1"}, [][]float32{{1, 1, 1}}, []VectorMetadata{{}}))
	assert.True(t, store.Contains("f1"))

	require.NoError(t, store.Delete(ctx, []string{"f1"}))
	assert.False(t, store.Contains("f1"))
	assert.Equal(t, 0, store.Count())
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/vectors.hnsw"

	store, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []string{"f1"}, [][]float32{{1, 0, 0}},
		[]VectorMetadata{{PartitionID: "dom0", AuthorityScore: 0.95}}))
	require.NoError(t, store.Save(path))

	reloaded, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(path))

	assert.True(t, reloaded.Contains("f1"))
	meta, ok := reloaded.Metadata("f1")
	require.True(t, ok)
	assert.Equal(t, "dom0", meta.PartitionID)

	dims, err := ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)
}
