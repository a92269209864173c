package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeindex/symgraph/internal/store"
)

// fakeMetadata implements store.MetadataStore with just enough behavior
// for search engine tests: an in-memory file table keyed by file_id.
type fakeMetadata struct {
	files map[string]*store.File
}

func newFakeMetadata(files ...*store.File) *fakeMetadata {
	m := &fakeMetadata{files: make(map[string]*store.File)}
	for _, f := range files {
		m.files[f.FileID] = f
	}
	return m
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
func (m *fakeMetadata) ListPending(ctx context.Context, limit int) ([]*store.File, error) { return nil, nil }
func (m *fakeMetadata) ListByPartition(ctx context.Context, partitionID string) ([]*store.File, error) {
	return nil, nil
}
func (m *fakeMetadata) ListAllPaths(ctx context.Context) (map[string]*store.File, error) { return nil, nil }
func (m *fakeMetadata) MarkEmbedded(ctx context.Context, fileID, embeddingModel string) error { return nil }
func (m *fakeMetadata) MarkFailed(ctx context.Context, fileID string) error                   { return nil }
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
func (m *fakeMetadata) Stats(ctx context.Context) (map[store.EmbeddingStatus]int, error) { return nil, nil }
func (m *fakeMetadata) SaveCheckpoint(ctx context.Context, cp *store.IndexCheckpoint) error { return nil }
func (m *fakeMetadata) LoadCheckpoint(ctx context.Context) (*store.IndexCheckpoint, error) { return nil, nil }
func (m *fakeMetadata) ClearCheckpoint(ctx context.Context) error                            { return nil }
func (m *fakeMetadata) Truncate(ctx context.Context) error                                   { return nil }
func (m *fakeMetadata) ValidateIntegrity(ctx context.Context) error                          { return nil }
func (m *fakeMetadata) Close() error                                                         { return nil }

var _ store.MetadataStore = (*fakeMetadata)(nil)

// fakeVector returns a fixed result list regardless of the query vector.
type fakeVector struct {
	results []*store.VectorResult
}

func (v *fakeVector) Upsert(ctx context.Context, fileIDs []string, vectors [][]float32, metadata []store.VectorMetadata) error {
	return nil
}
func (v *fakeVector) Delete(ctx context.Context, fileIDs []string) error { return nil }
func (v *fakeVector) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return v.results, nil
}
func (v *fakeVector) Metadata(fileID string) (store.VectorMetadata, bool) {
	return store.VectorMetadata{}, false
}
func (v *fakeVector) AllIDs() []string              { return nil }
func (v *fakeVector) Contains(fileID string) bool   { return false }
func (v *fakeVector) Count() int                    { return len(v.results) }
func (v *fakeVector) Dimension() int                { return 4 }
func (v *fakeVector) Save(path string) error        { return nil }
func (v *fakeVector) Load(path string) error         { return nil }
func (v *fakeVector) ValidateIntegrity() error       { return nil }
func (v *fakeVector) Close() error                   { return nil }

var _ store.VectorStore = (*fakeVector)(nil)

// fakeLexical returns a fixed result list regardless of the query text.
type fakeLexical struct {
	results []*store.BM25Result
}

func (l *fakeLexical) Upsert(ctx context.Context, docs []*store.Document) error { return nil }
func (l *fakeLexical) Delete(ctx context.Context, fileIDs []string) error      { return nil }
func (l *fakeLexical) Search(ctx context.Context, query string, k int) ([]*store.BM25Result, error) {
	return l.results, nil
}
func (l *fakeLexical) AllIDs() ([]string, error)       { return nil, nil }
func (l *fakeLexical) Stats() *store.IndexStats        { return &store.IndexStats{} }
func (l *fakeLexical) Save(path string) error          { return nil }
func (l *fakeLexical) Load(path string) error           { return nil }
func (l *fakeLexical) ValidateIntegrity() error         { return nil }
func (l *fakeLexical) Close() error                     { return nil }

var _ store.BM25Index = (*fakeLexical)(nil)

// fakeEmbedder returns a constant vector for any input text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}
func (fakeEmbedder) Dimensions() int      { return 4 }
func (fakeEmbedder) ModelName() string    { return "fake" }
func (fakeEmbedder) Ready(ctx context.Context) bool { return true }
func (fakeEmbedder) Close() error         { return nil }

func TestEngine_SearchHybrid_AuthorityWeightsRanking(t *testing.T) {
	meta := newFakeMetadata(
		&store.File{FileID: "high", Path: "dom0/a.md", AuthorityScore: 0.95, EmbeddingText: "alpha beta gamma"},
		&store.File{FileID: "low", Path: "whiteboard/b.md", AuthorityScore: 0.10, EmbeddingText: "alpha beta gamma"},
	)
	vec := &fakeVector{results: []*store.VectorResult{
		{FileID: "high", Score: 0.9},
		{FileID: "low", Score: 0.9},
	}}
	lex := &fakeLexical{results: []*store.BM25Result{
		{FileID: "high", Score: 5},
		{FileID: "low", Score: 5},
	}}

	e, err := NewEngine(meta, vec, lex, fakeEmbedder{})
	require.NoError(t, err)

	results, err := e.SearchHybrid(context.Background(), "alpha", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "high", results[0].FileID)
	require.Equal(t, "low", results[1].FileID)
	require.Greater(t, results[0].Score, results[1].Score)
}

func TestEngine_SearchHybrid_FiltersByPartition(t *testing.T) {
	meta := newFakeMetadata(
		&store.File{FileID: "a", Path: "a.go", PartitionID: "project", AuthorityScore: 0.5},
		&store.File{FileID: "b", Path: "b.go", PartitionID: "dom0", AuthorityScore: 0.95},
	)
	vec := &fakeVector{results: []*store.VectorResult{{FileID: "a", Score: 1}, {FileID: "b", Score: 1}}}
	lex := &fakeLexical{}

	e, err := NewEngine(meta, vec, lex, fakeEmbedder{})
	require.NoError(t, err)

	results, err := e.SearchHybrid(context.Background(), "q", Options{PartitionID: "dom0"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b", results[0].FileID)
}

// slowVector blocks until its context is done before returning, so tests
// can exercise the hybrid timeout-degrade path deterministically.
type slowVector struct{ fakeVector }

func (v *slowVector) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEngine_SearchHybrid_DegradesToLexicalOnVectorTimeout(t *testing.T) {
	meta := newFakeMetadata(
		&store.File{FileID: "a", Path: "a.go", AuthorityScore: 0.5},
	)
	vec := &slowVector{}
	lex := &fakeLexical{results: []*store.BM25Result{{FileID: "a", Score: 5}}}

	cfg := DefaultConfig()
	cfg.SearchTimeout = 20 * time.Millisecond
	e, err := NewEngine(meta, vec, lex, fakeEmbedder{}, WithConfig(cfg))
	require.NoError(t, err)

	results, err := e.SearchHybrid(context.Background(), "q", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Partial)
	require.Equal(t, "a", results[0].FileID)
}

func TestEngine_SearchSemantic_Standalone(t *testing.T) {
	meta := newFakeMetadata(&store.File{FileID: "a", Path: "a.go", AuthorityScore: 0.5})
	vec := &fakeVector{results: []*store.VectorResult{{FileID: "a", Score: 0.9}}}
	lex := &fakeLexical{}

	e, err := NewEngine(meta, vec, lex, fakeEmbedder{})
	require.NoError(t, err)

	results, err := e.SearchSemantic(context.Background(), "q", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 0.0, results[0].LexicalScore)
}
