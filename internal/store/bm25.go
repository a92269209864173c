package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryBM25Index implements BM25Index as an in-process inverted index with
// configurable k1/b, built directly on the tokenizer rather than a blackbox
// full-text engine that wouldn't expose those parameters.
type MemoryBM25Index struct {
	mu     sync.RWMutex
	config BM25Config
	stop   map[string]struct{}

	// postings[term][fileID] = term frequency within that document.
	postings map[string]map[string]int
	docLen   map[string]int
	docPath  map[string]string
	totalLen int
	closed   bool
}

// bm25Persisted is the gob-encoded on-disk representation.
type bm25Persisted struct {
	Config   BM25Config
	Postings map[string]map[string]int
	DocLen   map[string]int
	DocPath  map[string]string
	TotalLen int
}

// NewMemoryBM25Index creates a new in-process BM25 index.
func NewMemoryBM25Index(cfg BM25Config) *MemoryBM25Index {
	if cfg.K1 == 0 && cfg.B == 0 {
		cfg = DefaultBM25Config()
	}
	if cfg.MinTokenLength == 0 {
		cfg.MinTokenLength = 2
	}
	return &MemoryBM25Index{
		config:   cfg,
		stop:     BuildStopWordMap(cfg.StopWords),
		postings: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		docPath:  make(map[string]string),
	}
}

var _ BM25Index = (*MemoryBM25Index)(nil)

func (idx *MemoryBM25Index) tokenize(doc *Document) []string {
	var text string
	if len(doc.SymbolNames) > 0 {
		for _, name := range doc.SymbolNames {
			text += name + " "
		}
	}
	text += doc.Path
	return idx.filterTokens(TokenizeCode(text))
}

// filterTokens applies the index's configured minimum length and stop-word
// list. Used for both document and query tokenization so scoring stays
// symmetric.
func (idx *MemoryBM25Index) filterTokens(tokens []string) []string {
	filtered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) < idx.config.MinTokenLength {
			continue
		}
		if _, isStop := idx.stop[t]; isStop {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// Upsert replaces any prior document for each doc.FileID.
func (idx *MemoryBM25Index) Upsert(ctx context.Context, docs []*Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	for _, doc := range docs {
		idx.removeLocked(doc.FileID)

		tokens := idx.tokenize(doc)
		idx.docLen[doc.FileID] = len(tokens)
		idx.docPath[doc.FileID] = doc.Path
		idx.totalLen += len(tokens)

		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[t]++
		}
		for term, tf := range counts {
			if idx.postings[term] == nil {
				idx.postings[term] = make(map[string]int)
			}
			idx.postings[term][doc.FileID] = tf
		}
	}
	return nil
}

// Delete removes documents from the index.
func (idx *MemoryBM25Index) Delete(ctx context.Context, fileIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("bm25 index is closed")
	}
	for _, id := range fileIDs {
		idx.removeLocked(id)
	}
	return nil
}

// removeLocked deletes a document's postings and length accounting. Caller
// must hold idx.mu.
func (idx *MemoryBM25Index) removeLocked(fileID string) {
	if length, exists := idx.docLen[fileID]; exists {
		idx.totalLen -= length
		delete(idx.docLen, fileID)
		delete(idx.docPath, fileID)
	}
	for term, docs := range idx.postings {
		if _, ok := docs[fileID]; ok {
			delete(docs, fileID)
			if len(docs) == 0 {
				delete(idx.postings, term)
			}
		}
	}
}

// Search scores candidate documents via the classic Okapi BM25 formula with
// the index's configured k1/b, returning raw (not yet normalized) scores
// with a deterministic file_id tie-break.
func (idx *MemoryBM25Index) Search(ctx context.Context, query string, k int) ([]*BM25Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, fmt.Errorf("bm25 index is closed")
	}

	n := len(idx.docLen)
	if n == 0 {
		return []*BM25Result{}, nil
	}

	avgDocLen := float64(idx.totalLen) / float64(n)
	if avgDocLen == 0 {
		avgDocLen = 1
	}

	queryTerms := idx.filterTokens(TokenizeCode(query))
	scores := make(map[string]float64)

	for _, term := range queryTerms {
		docs, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := len(docs)
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

		for fileID, tf := range docs {
			docLen := float64(idx.docLen[fileID])
			denom := float64(tf) + idx.config.K1*(1-idx.config.B+idx.config.B*docLen/avgDocLen)
			scores[fileID] += idf * (float64(tf) * (idx.config.K1 + 1) / denom)
		}
	}

	results := make([]*BM25Result, 0, len(scores))
	for fileID, score := range scores {
		results = append(results, &BM25Result{FileID: fileID, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FileID < results[j].FileID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// AllIDs returns every document id currently in the index.
func (idx *MemoryBM25Index) AllIDs() ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, 0, len(idx.docLen))
	for id := range idx.docLen {
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats returns index-wide statistics.
func (idx *MemoryBM25Index) Stats() *IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docLen)
	avg := 0.0
	if n > 0 {
		avg = float64(idx.totalLen) / float64(n)
	}
	return &IndexStats{
		DocumentCount: n,
		TermCount:     len(idx.postings),
		AvgDocLength:  avg,
	}
}

// Save persists the index atomically (temp file + rename).
func (idx *MemoryBM25Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	payload := bm25Persisted{
		Config:   idx.config,
		Postings: idx.postings,
		DocLen:   idx.docLen,
		DocPath:  idx.docPath,
		TotalLen: idx.totalLen,
	}

	if err := gob.NewEncoder(file).Encode(payload); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads a previously saved index from disk.
func (idx *MemoryBM25Index) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	var payload bm25Persisted
	if err := gob.NewDecoder(file).Decode(&payload); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}

	idx.config = payload.Config
	idx.stop = BuildStopWordMap(payload.Config.StopWords)
	idx.postings = payload.Postings
	idx.docLen = payload.DocLen
	idx.docPath = payload.DocPath
	idx.totalLen = payload.TotalLen
	return nil
}

// ValidateIntegrity checks that postings and document-length accounting
// agree.
func (idx *MemoryBM25Index) ValidateIntegrity() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return fmt.Errorf("bm25 index is closed")
	}
	for term, docs := range idx.postings {
		for fileID := range docs {
			if _, ok := idx.docLen[fileID]; !ok {
				return fmt.Errorf("bm25 index corrupted: term %q references unknown document %q", term, fileID)
			}
		}
	}
	return nil
}

// Close releases resources.
func (idx *MemoryBM25Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}
