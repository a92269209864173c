package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindex/symgraph/internal/store"
)

type fakeMetadata struct {
	files map[string]*store.File
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{files: make(map[string]*store.File)}
}

func (m *fakeMetadata) UpsertFile(ctx context.Context, file *store.File, symbols []*store.Symbol, imports []*store.ImportEdge) error {
	m.files[file.FileID] = file
	return nil
}
func (m *fakeMetadata) GetFile(ctx context.Context, fileID string) (*store.File, error) {
	return m.files[fileID], nil
}
func (m *fakeMetadata) GetFileByPath(ctx context.Context, path string) (*store.File, error) {
	for _, f := range m.files {
		if f.Path == path {
			return f, nil
		}
	}
	return nil, nil
}
func (m *fakeMetadata) ListPending(ctx context.Context, limit int) ([]*store.File, error) {
	var out []*store.File
	for _, f := range m.files {
		if f.Status == store.EmbeddingStatusPending {
			out = append(out, f)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
func (m *fakeMetadata) ListByPartition(ctx context.Context, partitionID string) ([]*store.File, error) {
	return nil, nil
}
func (m *fakeMetadata) ListAllPaths(ctx context.Context) (map[string]*store.File, error) {
	out := make(map[string]*store.File, len(m.files))
	for _, f := range m.files {
		out[f.Path] = f
	}
	return out, nil
}
func (m *fakeMetadata) MarkEmbedded(ctx context.Context, fileID, embeddingModel string) error {
	if f, ok := m.files[fileID]; ok {
		f.Status = store.EmbeddingStatusEmbedded
		f.EmbeddingModel = embeddingModel
	}
	return nil
}
func (m *fakeMetadata) MarkFailed(ctx context.Context, fileID string) error {
	if f, ok := m.files[fileID]; ok {
		f.Status = store.EmbeddingStatusFailed
	}
	return nil
}
func (m *fakeMetadata) DeleteFile(ctx context.Context, fileID string) error {
	delete(m.files, fileID)
	return nil
}
func (m *fakeMetadata) GetSymbols(ctx context.Context, fileID string) ([]*store.Symbol, error) {
	return nil, nil
}
func (m *fakeMetadata) SearchSymbols(ctx context.Context, name string, limit int) ([]*store.Symbol, error) {
	return nil, nil
}
func (m *fakeMetadata) Stats(ctx context.Context) (map[store.EmbeddingStatus]int, error) {
	out := make(map[store.EmbeddingStatus]int)
	for _, f := range m.files {
		out[f.Status]++
	}
	return out, nil
}
func (m *fakeMetadata) SaveCheckpoint(ctx context.Context, cp *store.IndexCheckpoint) error { return nil }
func (m *fakeMetadata) LoadCheckpoint(ctx context.Context) (*store.IndexCheckpoint, error) {
	return nil, nil
}
func (m *fakeMetadata) ClearCheckpoint(ctx context.Context) error { return nil }
func (m *fakeMetadata) Truncate(ctx context.Context) error {
	m.files = make(map[string]*store.File)
	return nil
}
func (m *fakeMetadata) ValidateIntegrity(ctx context.Context) error { return nil }
func (m *fakeMetadata) Close() error                                { return nil }

var _ store.MetadataStore = (*fakeMetadata)(nil)

type fakeVector struct {
	ids map[string]bool
}

func newFakeVector() *fakeVector { return &fakeVector{ids: make(map[string]bool)} }

func (v *fakeVector) Upsert(ctx context.Context, fileIDs []string, vectors [][]float32, metadata []store.VectorMetadata) error {
	for _, id := range fileIDs {
		v.ids[id] = true
	}
	return nil
}
func (v *fakeVector) Delete(ctx context.Context, fileIDs []string) error {
	for _, id := range fileIDs {
		delete(v.ids, id)
	}
	return nil
}
func (v *fakeVector) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return nil, nil
}
func (v *fakeVector) Metadata(fileID string) (store.VectorMetadata, bool) {
	return store.VectorMetadata{}, false
}
func (v *fakeVector) AllIDs() []string {
	out := make([]string, 0, len(v.ids))
	for id := range v.ids {
		out = append(out, id)
	}
	return out
}
func (v *fakeVector) Contains(fileID string) bool { return v.ids[fileID] }
func (v *fakeVector) Count() int                  { return len(v.ids) }
func (v *fakeVector) Dimension() int               { return 4 }
func (v *fakeVector) Save(path string) error       { return nil }
func (v *fakeVector) Load(path string) error        { return nil }
func (v *fakeVector) ValidateIntegrity() error      { return nil }
func (v *fakeVector) Close() error                  { return nil }

var _ store.VectorStore = (*fakeVector)(nil)

// mismatchVector always rejects writes with store.ErrDimensionMismatch, so
// tests can exercise the fatal-abort path without a real HNSW collection.
type mismatchVector struct {
	fakeVector
}

func (v *mismatchVector) Upsert(ctx context.Context, fileIDs []string, vectors [][]float32, metadata []store.VectorMetadata) error {
	return store.ErrDimensionMismatch{Expected: 4, Got: 8}
}

var _ store.VectorStore = (*mismatchVector)(nil)

type fakeLexical struct {
	docs map[string]*store.Document
}

func newFakeLexical() *fakeLexical { return &fakeLexical{docs: make(map[string]*store.Document)} }

func (l *fakeLexical) Upsert(ctx context.Context, docs []*store.Document) error {
	for _, d := range docs {
		l.docs[d.FileID] = d
	}
	return nil
}
func (l *fakeLexical) Delete(ctx context.Context, fileIDs []string) error {
	for _, id := range fileIDs {
		delete(l.docs, id)
	}
	return nil
}
func (l *fakeLexical) Search(ctx context.Context, query string, k int) ([]*store.BM25Result, error) {
	return nil, nil
}
func (l *fakeLexical) AllIDs() ([]string, error) {
	out := make([]string, 0, len(l.docs))
	for id := range l.docs {
		out = append(out, id)
	}
	return out, nil
}
func (l *fakeLexical) Stats() *store.IndexStats { return &store.IndexStats{DocumentCount: len(l.docs)} }
func (l *fakeLexical) Save(path string) error     { return nil }
func (l *fakeLexical) Load(path string) error      { return nil }
func (l *fakeLexical) ValidateIntegrity() error    { return nil }
func (l *fakeLexical) Close() error                { return nil }

var _ store.BM25Index = (*fakeLexical)(nil)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dims), nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int              { return f.dims }
func (f *fakeEmbedder) ModelName() string            { return "fake" }
func (f *fakeEmbedder) Ready(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                  { return nil }

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc Run() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# Demo\n\nHello.\n"), 0o644))
	return root
}

func TestOrchestrator_IndexRepository_IndexesAndEmbeds(t *testing.T) {
	root := writeRepo(t)
	dataDir := filepath.Join(root, "var", "storage")

	meta := newFakeMetadata()
	vec := newFakeVector()
	lex := newFakeLexical()
	emb := &fakeEmbedder{dims: 4}

	o, err := NewOrchestrator(root, dataDir, meta, vec, lex, emb)
	require.NoError(t, err)
	defer o.Close()

	stats, err := o.IndexRepository(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Fresh)
	require.Equal(t, 2, stats.Embedded)
	require.Empty(t, stats.Errors)
	require.Equal(t, OutcomeSuccess, stats.Outcome)
	require.Equal(t, 2, len(meta.files))
	require.Equal(t, 2, vec.Count())

	logDir := filepath.Join(dataDir, "logs", "index")
	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestOrchestrator_IndexRepository_SecondRunIsAllUnchanged(t *testing.T) {
	root := writeRepo(t)
	dataDir := filepath.Join(root, "var", "storage")

	meta := newFakeMetadata()
	vec := newFakeVector()
	lex := newFakeLexical()
	emb := &fakeEmbedder{dims: 4}

	o, err := NewOrchestrator(root, dataDir, meta, vec, lex, emb)
	require.NoError(t, err)
	defer o.Close()

	_, err = o.IndexRepository(context.Background(), Options{})
	require.NoError(t, err)

	stats, err := o.IndexRepository(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Unchanged)
	require.Equal(t, 0, stats.Fresh)
	require.Equal(t, 0, stats.Stale)
	require.Equal(t, 1.0, stats.CacheHitRate)
}

func TestOrchestrator_ForceClean_TruncatesBeforeWalk(t *testing.T) {
	root := writeRepo(t)
	dataDir := filepath.Join(root, "var", "storage")

	meta := newFakeMetadata()
	vec := newFakeVector()
	lex := newFakeLexical()
	emb := &fakeEmbedder{dims: 4}

	o, err := NewOrchestrator(root, dataDir, meta, vec, lex, emb)
	require.NoError(t, err)
	defer o.Close()

	_, err = o.IndexRepository(context.Background(), Options{})
	require.NoError(t, err)

	stats, err := o.IndexRepository(context.Background(), Options{ForceClean: true})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Fresh)
	require.Equal(t, 0, stats.Unchanged)
}

func TestOrchestrator_DeletedFileCascades(t *testing.T) {
	root := writeRepo(t)
	dataDir := filepath.Join(root, "var", "storage")

	meta := newFakeMetadata()
	vec := newFakeVector()
	lex := newFakeLexical()
	emb := &fakeEmbedder{dims: 4}

	o, err := NewOrchestrator(root, dataDir, meta, vec, lex, emb)
	require.NoError(t, err)
	defer o.Close()

	_, err = o.IndexRepository(context.Background(), Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))

	stats, err := o.IndexRepository(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Deleted)
	require.Equal(t, 1, len(meta.files))
}

func TestOrchestrator_IndexRepository_AbortsOnVectorDimensionMismatch(t *testing.T) {
	root := writeRepo(t)
	dataDir := filepath.Join(root, "var", "storage")

	meta := newFakeMetadata()
	vec := &mismatchVector{}
	lex := newFakeLexical()
	emb := &fakeEmbedder{dims: 4}

	o, err := NewOrchestrator(root, dataDir, meta, vec, lex, emb)
	require.NoError(t, err)
	defer o.Close()

	stats, err := o.IndexRepository(context.Background(), Options{})
	require.Error(t, err)
	require.ErrorAs(t, err, new(store.ErrDimensionMismatch))
	require.Equal(t, OutcomeFailure, stats.Outcome)
	require.Zero(t, stats.Embedded)
}

func TestOrchestrator_Stats_ReadOnlySnapshot(t *testing.T) {
	root := writeRepo(t)
	dataDir := filepath.Join(root, "var", "storage")

	meta := newFakeMetadata()
	vec := newFakeVector()
	lex := newFakeLexical()
	emb := &fakeEmbedder{dims: 4}

	o, err := NewOrchestrator(root, dataDir, meta, vec, lex, emb)
	require.NoError(t, err)
	defer o.Close()

	_, err = o.IndexRepository(context.Background(), Options{})
	require.NoError(t, err)

	fileStats, lexStats, err := o.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, fileStats[store.EmbeddingStatusEmbedded])
	require.Equal(t, 2, lexStats.DocumentCount)
}
