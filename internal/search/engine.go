package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeindex/symgraph/internal/embed"
	"github.com/codeindex/symgraph/internal/store"
)

// Engine implements SearchEngine over a metadata store, vector store, and
// lexical index.
type Engine struct {
	metadata store.MetadataStore
	vector   store.VectorStore
	lexical  store.BM25Index
	embedder embed.Embedder
	config   Config

	queryCache *lru.Cache[string, []float32]
}

var _ SearchEngine = (*Engine)(nil)

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

func WithFusionMode(mode FusionMode) Option {
	return func(e *Engine) { e.config.FusionMode = mode }
}

// NewEngine wires the three stores and an embedder into a search engine.
func NewEngine(metadata store.MetadataStore, vector store.VectorStore, lexical store.BM25Index, embedder embed.Embedder, opts ...Option) (*Engine, error) {
	if metadata == nil || vector == nil || lexical == nil || embedder == nil {
		return nil, fmt.Errorf("search: nil dependency")
	}

	e := &Engine{
		metadata: metadata,
		vector:   vector,
		lexical:  lexical,
		embedder: embedder,
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	cache, err := lru.New[string, []float32](e.config.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("search: create query cache: %w", err)
	}
	e.queryCache = cache

	return e, nil
}

func (e *Engine) Close() error { return nil }

// embedQuery embeds query, serving from the LRU cache on repeat lookups.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if v, ok := e.queryCache.Get(query); ok {
		return v, nil
	}
	v, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	e.queryCache.Add(query, v)
	return v, nil
}

func (e *Engine) resolveLimit(opts Options) int {
	if opts.Limit <= 0 {
		return e.config.DefaultLimit
	}
	if opts.Limit > e.config.MaxLimit {
		return e.config.MaxLimit
	}
	return opts.Limit
}

func (e *Engine) resolveWeights(opts Options) Weights {
	if opts.Weights != nil {
		return *opts.Weights
	}
	return e.config.DefaultWeights
}

// SearchSemantic ranks by vector similarity alone, authority-weighted
// directly on the normalized score.
func (e *Engine) SearchSemantic(ctx context.Context, query string, opts Options) ([]*Result, error) {
	limit := e.resolveLimit(opts)
	qvec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := e.vector.Search(ctx, qvec, fetchK(limit))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	raw := make(map[string]float64, len(hits))
	for _, h := range hits {
		raw[h.FileID] = float64(h.Score)
	}
	norm := normalize(raw)

	return e.rankSingleSource(ctx, norm, opts, limit, func(r *Result, score float64) {
		r.SemanticScore = score
	})
}

// SearchKeyword ranks by BM25 score alone, authority-weighted directly on
// the normalized score.
func (e *Engine) SearchKeyword(ctx context.Context, query string, opts Options) ([]*Result, error) {
	limit := e.resolveLimit(opts)

	hits, err := e.lexical.Search(ctx, query, fetchK(limit))
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	raw := make(map[string]float64, len(hits))
	for _, h := range hits {
		raw[h.FileID] = h.Score
	}
	norm := normalize(raw)

	return e.rankSingleSource(ctx, norm, opts, limit, func(r *Result, score float64) {
		r.LexicalScore = score
	})
}

// SearchHybrid fans out to both sources concurrently, min-max normalizes
// each list, fuses with the configured weights, and applies authority
// weighting before truncating to opts.Limit.
func (e *Engine) SearchHybrid(ctx context.Context, query string, opts Options) ([]*Result, error) {
	limit := e.resolveLimit(opts)
	k := fetchK(limit)

	searchCtx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	// Each side runs against its own un-cancelled-by-the-other context: a
	// slow or timed-out vector search must not abort a lexical search that
	// already returned, and vice versa. That's why this fans out with a
	// plain WaitGroup instead of errgroup.WithContext, which cancels the
	// shared context (and with it, the other goroutine) on the first error.
	var (
		vecHits        []*store.VectorResult
		lexHits        []*store.BM25Result
		vecErr, lexErr error
		wg             sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		qvec, err := e.embedQuery(searchCtx, query)
		if err != nil {
			vecErr = err
			return
		}
		hits, err := e.vector.Search(searchCtx, qvec, k)
		if err != nil {
			vecErr = fmt.Errorf("vector search: %w", err)
			return
		}
		vecHits = hits
	}()
	go func() {
		defer wg.Done()
		hits, err := e.lexical.Search(searchCtx, query, k)
		if err != nil {
			lexErr = fmt.Errorf("lexical search: %w", err)
			return
		}
		lexHits = hits
	}()
	wg.Wait()

	if vecErr != nil && lexErr != nil {
		return nil, fmt.Errorf("hybrid search: vector: %v, lexical: %v", vecErr, lexErr)
	}
	partial := vecErr != nil || lexErr != nil

	rawSemantic := make(map[string]float64, len(vecHits))
	for _, h := range vecHits {
		rawSemantic[h.FileID] = float64(h.Score)
	}
	rawLexical := make(map[string]float64, len(lexHits))
	for _, h := range lexHits {
		rawLexical[h.FileID] = h.Score
	}
	normSemantic := normalize(rawSemantic)
	normLexical := normalize(rawLexical)

	candidates := make(map[string]*candidate)
	for id, s := range normSemantic {
		candidates[id] = &candidate{fileID: id, semantic: s, inVector: true}
	}
	for id, s := range normLexical {
		c, ok := candidates[id]
		if !ok {
			c = &candidate{fileID: id}
			candidates[id] = c
		}
		c.lexical = s
		c.inLexical = true
	}

	weights := e.resolveWeights(opts)
	base := fuse(candidates, weights)

	results := make([]*Result, 0, len(candidates))
	for id, c := range candidates {
		file, err := e.metadata.GetFile(ctx, id)
		if err != nil || file == nil {
			continue
		}
		if !passesFilters(file, opts) {
			continue
		}
		r := &Result{
			FileID:         file.FileID,
			Path:           file.Path,
			Language:       file.Language,
			PartitionID:    file.PartitionID,
			SemanticScore:  c.semantic,
			LexicalScore:   c.lexical,
			Score:          applyAuthority(base[id], file.AuthorityScore, e.config.FusionMode),
			AuthorityScore: file.AuthorityScore,
			Snippet:        snippet(file.EmbeddingText, e.config.SnippetChars),
			Partial:        partial,
		}
		results = append(results, r)
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// rankSingleSource resolves file metadata for a normalized single-source
// score map, applies authority weighting and filters, and returns the
// sorted, truncated result list. setScore records the source-specific
// score (semantic or lexical) on each result.
func (e *Engine) rankSingleSource(ctx context.Context, norm map[string]float64, opts Options, limit int, setScore func(*Result, float64)) ([]*Result, error) {
	results := make([]*Result, 0, len(norm))
	for id, score := range norm {
		file, err := e.metadata.GetFile(ctx, id)
		if err != nil || file == nil {
			continue
		}
		if !passesFilters(file, opts) {
			continue
		}
		r := &Result{
			FileID:         file.FileID,
			Path:           file.Path,
			Language:       file.Language,
			PartitionID:    file.PartitionID,
			AuthorityScore: file.AuthorityScore,
			Score:          applyAuthority(score, file.AuthorityScore, e.config.FusionMode),
			Snippet:        snippet(file.EmbeddingText, e.config.SnippetChars),
		}
		setScore(r, score)
		results = append(results, r)
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func passesFilters(file *store.File, opts Options) bool {
	if opts.PartitionID != "" && file.PartitionID != opts.PartitionID {
		return false
	}
	if opts.Language != "" && file.Language != opts.Language {
		return false
	}
	return true
}

// snippet trims text to at most maxChars, breaking on the nearest
// preceding whitespace rather than mid-word.
func snippet(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// sortResults orders by final score descending, file_id ascending.
func sortResults(results []*Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FileID < results[j].FileID
	})
}
