package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "metadata.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_UpsertFileAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := &File{
		FileID:        "f1",
		Path:          "CLAUDE.md",
		Language:      "markdown",
		ContentHash:   "abc123",
		PartitionID:   "dom0",
		AuthorityScore: 0.95,
		EmbeddingText: "CLAUDE.md markdown",
		Status:        EmbeddingStatusPending,
		IndexedAt:     time.Now(),
	}
	symbols := []*Symbol{{SymbolID: "s1", FileID: "f1", Name: "greet", Kind: SymbolKindFunction, IsExported: true}}
	imports := []*ImportEdge{{FileID: "f1", ModulePath: "fmt"}}

	require.NoError(t, s.UpsertFile(ctx, file, symbols, imports))

	got, err := s.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "CLAUDE.md", got.Path)
	assert.Equal(t, 0.95, got.AuthorityScore)

	syms, err := s.GetSymbols(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "greet", syms[0].Name)
}

func TestSQLiteStore_ReindexReplacesSymbols(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := &File{FileID: "f1", Path: "a.go", Status: EmbeddingStatusPending, IndexedAt: time.Now()}
	require.NoError(t, s.UpsertFile(ctx, file, []*Symbol{{SymbolID: "s1", FileID: "f1", Name: "old"}}, nil))
	require.NoError(t, s.UpsertFile(ctx, file, []*Symbol{{SymbolID: "s2", FileID: "f1", Name: "new"}}, nil))

	syms, err := s.GetSymbols(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "new", syms[0].Name)
}

func TestSQLiteStore_MarkEmbeddedAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFile(ctx, &File{FileID: "f1", Path: "a.go", Status: EmbeddingStatusPending, IndexedAt: time.Now()}, nil, nil))
	require.NoError(t, s.MarkEmbedded(ctx, "f1", "local-hashed-fallback-v1"))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[EmbeddingStatusEmbedded])
	assert.Equal(t, 0, stats[EmbeddingStatusPending])
}

func TestSQLiteStore_DeleteFileCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFile(ctx, &File{FileID: "f1", Path: "a.go", Status: EmbeddingStatusPending, IndexedAt: time.Now()},
		[]*Symbol{{SymbolID: "s1", FileID: "f1", Name: "x"}}, nil))
	require.NoError(t, s.DeleteFile(ctx, "f1"))

	_, err := s.GetFile(ctx, "f1")
	assert.Error(t, err)

	syms, err := s.GetSymbols(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestSQLiteStore_CheckpointRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := &IndexCheckpoint{Stage: "embedding", Total: 10, EmbeddedCount: 3, Timestamp: time.Now(), EmbedderModel: "m1"}
	require.NoError(t, s.SaveCheckpoint(ctx, cp))

	loaded, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "embedding", loaded.Stage)

	require.NoError(t, s.ClearCheckpoint(ctx))
	loaded, err = s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSQLiteStore_Truncate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFile(ctx, &File{FileID: "f1", Path: "a.go", Status: EmbeddingStatusPending, IndexedAt: time.Now()}, nil, nil))
	require.NoError(t, s.Truncate(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats[EmbeddingStatusPending])
}

func TestSQLiteStore_ValidateIntegrity(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.ValidateIntegrity(context.Background()))
}
