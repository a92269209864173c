package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/codeindex/symgraph/internal/embed"
	"github.com/codeindex/symgraph/internal/embedtext"
	"github.com/codeindex/symgraph/internal/extract"
	"github.com/codeindex/symgraph/internal/partition"
	"github.com/codeindex/symgraph/internal/scanner"
	"github.com/codeindex/symgraph/internal/store"
)

// Orchestrator drives index_repository and index_files: it walks the
// repository (C1), extracts symbols (C2), builds embedding text (C3),
// classifies partitions (C4), persists to the metadata/vector/lexical
// stores (C6/C7/C8), and calls the embedder (C5) in batches.
type Orchestrator struct {
	root    string
	dataDir string

	scanner   *scanner.Scanner
	extractor *extract.Extractor
	builder   *embedtext.Builder

	metadata store.MetadataStore
	vector   store.VectorStore
	lexical  store.BM25Index
	embedder embed.Embedder
}

// NewOrchestrator wires an Orchestrator over its stores and embedder.
// dataDir is the repository-relative var/storage directory, used for the
// single-writer lock file and the index run log.
func NewOrchestrator(root, dataDir string, metadata store.MetadataStore, vector store.VectorStore, lexical store.BM25Index, embedder embed.Embedder) (*Orchestrator, error) {
	if metadata == nil || vector == nil || lexical == nil || embedder == nil {
		return nil, fmt.Errorf("index: nil dependency")
	}

	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("index: create scanner: %w", err)
	}

	return &Orchestrator{
		root:      root,
		dataDir:   dataDir,
		scanner:   sc,
		extractor: extract.NewExtractor(),
		builder:   embedtext.NewBuilder(embedtext.DefaultOptions()),
		metadata:  metadata,
		vector:    vector,
		lexical:   lexical,
		embedder:  embedder,
	}, nil
}

// Close releases the tree-sitter parser pool.
func (o *Orchestrator) Close() error {
	o.extractor.Close()
	return nil
}

// IndexRepository walks the whole root, classifying every discovered file
// as fresh, stale, or unchanged, and reconciles deletions.
func (o *Orchestrator) IndexRepository(ctx context.Context, opts Options) (*IndexStats, error) {
	return o.run(ctx, opts, nil)
}

// IndexFiles indexes an explicit path list without walking the rest of the
// repository and without cascade-deleting files absent from the list.
// Absolute paths are taken relative to the repository root.
func (o *Orchestrator) IndexFiles(ctx context.Context, paths []string, opts Options) (*IndexStats, error) {
	absRoot, _ := filepath.Abs(o.root)
	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			if r, err := filepath.Rel(absRoot, p); err == nil {
				p = r
			}
		}
		rel = append(rel, filepath.ToSlash(p))
	}
	opts.Files = rel
	return o.run(ctx, opts, rel)
}

func (o *Orchestrator) run(ctx context.Context, opts Options, restrictTo []string) (*IndexStats, error) {
	started := time.Now()
	stats := &IndexStats{
		RunID:      uuid.NewString(),
		ByLanguage: map[string]int{},
		StartedAt:  started,
	}

	if err := os.MkdirAll(o.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("index: create data dir: %w", err)
	}

	lock := flock.New(filepath.Join(o.dataDir, ".index.lock"))
	locked, err := lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("index: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("index: another run is already in progress against %s", o.dataDir)
	}
	defer lock.Unlock()

	if opts.ForceClean {
		if err := o.forceClean(ctx); err != nil {
			return nil, fmt.Errorf("index: force_clean: %w", err)
		}
		slog.Info("index_force_clean_complete")
	}

	known, err := o.metadata.ListAllPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: load known paths: %w", err)
	}

	lookup := func(path string) (scanner.KnownFile, bool) {
		f, ok := known[path]
		if !ok {
			return scanner.KnownFile{}, false
		}
		// A failed file reads as stale so it is re-processed back to pending.
		if f.Status == store.EmbeddingStatusFailed {
			return scanner.KnownFile{}, true
		}
		return scanner.KnownFile{ContentHash: f.ContentHash}, true
	}

	scanOpts := scanner.ScanOptions{
		RootDir:          o.root,
		IncludePatterns:  opts.Include,
		ExcludePatterns:  opts.Exclude,
		RespectGitignore: true,
		Workers:          resolveWorkers(opts.MaxWorkers),
	}
	if len(restrictTo) > 0 {
		scanOpts.IncludePatterns = restrictTo
	}
	// The lock file and run logs live under dataDir; keep them out of the walk.
	if rel, err := filepath.Rel(o.root, o.dataDir); err == nil && filepath.IsLocal(rel) {
		scanOpts.ExcludePatterns = append(append([]string(nil), opts.Exclude...), filepath.ToSlash(rel)+"/**")
	}

	results, err := o.scanner.Scan(ctx, scanOpts, lookup)
	if err != nil {
		return nil, fmt.Errorf("index: start scan: %w", err)
	}

	var (
		mu      sync.Mutex
		indexed []string
		skipped []string
		failed  []runFailedDetail
		seen    = make(map[string]bool)
	)

	sem := semaphore.NewWeighted(int64(resolveWorkers(opts.MaxWorkers)))
	var wg sync.WaitGroup

	for res := range results {
		if res.Error != nil {
			mu.Lock()
			stats.Errors = append(stats.Errors, FileError{Error: res.Error.Error()})
			mu.Unlock()
			continue
		}
		c := res.Candidate

		mu.Lock()
		seen[c.Path] = true
		stats.Total++
		switch c.Status {
		case scanner.StatusUnchanged:
			stats.Unchanged++
			skipped = append(skipped, c.Path)
			mu.Unlock()
			continue
		case scanner.StatusFresh:
			stats.Fresh++
		case scanner.StatusStale:
			stats.Stale++
		}
		mu.Unlock()

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			stats.Errors = append(stats.Errors, FileError{Path: c.Path, Error: err.Error()})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(c *scanner.Candidate) {
			defer wg.Done()
			defer sem.Release(1)

			if perr := o.processFile(ctx, c); perr != nil {
				slog.Warn("index_file_failed", slog.String("path", c.Path), slog.String("error", perr.Error()))
				mu.Lock()
				stats.Errors = append(stats.Errors, FileError{Path: c.Path, Error: perr.Error()})
				failed = append(failed, runFailedDetail{File: c.Path, Error: perr.Error()})
				mu.Unlock()
				return
			}

			mu.Lock()
			indexed = append(indexed, c.Path)
			stats.ByLanguage[c.Language]++
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	// Cascade-delete files that disappeared from the walk. Skipped for
	// index_files, which operates on an explicit subset.
	if len(restrictTo) == 0 {
		for path, f := range known {
			if seen[path] {
				continue
			}
			if err := o.removeFile(ctx, f.FileID); err != nil {
				slog.Warn("index_delete_failed", slog.String("path", path), slog.String("error", err.Error()))
				stats.Errors = append(stats.Errors, FileError{Path: path, Error: err.Error()})
				continue
			}
			stats.Deleted++
		}
	}

	embedded, embedErrs, fatalErr := o.embedPending(ctx, opts)
	stats.Embedded = embedded
	stats.Errors = append(stats.Errors, embedErrs...)

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(started)
	if stats.Total > 0 {
		stats.CacheHitRate = float64(stats.Unchanged) / float64(stats.Total)
	}

	switch {
	case fatalErr != nil:
		stats.Outcome = OutcomeFailure
	case len(stats.Errors) > 0:
		stats.Outcome = OutcomePartial
	default:
		stats.Outcome = OutcomeSuccess
	}

	sort.Strings(indexed)
	sort.Strings(skipped)
	sort.Slice(failed, func(i, j int) bool { return failed[i].File < failed[j].File })

	if err := o.persistRunLog(stats, indexed, skipped, failed); err != nil {
		slog.Warn("index_run_log_write_failed", slog.String("error", err.Error()))
	}

	slog.Info("index_run_complete",
		slog.String("run_id", stats.RunID),
		slog.String("outcome", string(stats.Outcome)),
		slog.Int("total", stats.Total),
		slog.Int("fresh", stats.Fresh),
		slog.Int("stale", stats.Stale),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("embedded", stats.Embedded),
		slog.Int("deleted", stats.Deleted),
		slog.Int("errors", len(stats.Errors)),
		slog.String("duration", stats.Duration.String()))

	if fatalErr != nil {
		return stats, fmt.Errorf("index: %w", fatalErr)
	}
	return stats, nil
}

// processFile extracts, builds embedding text, classifies, and upserts
// metadata and the lexical doc for a single file. Metadata upsert
// happens-before the lexical upsert so keyword search never observes a
// lexical doc for a file metadata doesn't yet know about.
func (o *Orchestrator) processFile(ctx context.Context, c *scanner.Candidate) error {
	content, err := os.ReadFile(c.AbsPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	id := fileID(c.Path)

	var symbols []*store.Symbol
	var imports []*store.ImportEdge
	if c.ContentType == scanner.ContentTypeCode {
		res, err := o.extractor.Extract(ctx, id, content, c.Language)
		if err != nil {
			return fmt.Errorf("extract symbols: %w", err)
		}
		symbols = res.Symbols
		imports = res.Imports
	}

	part := partition.Classify(c.Path)

	embText := o.builder.Build(embedtext.Input{
		Path:        c.Path,
		Language:    c.Language,
		ContentType: string(c.ContentType),
		Source:      content,
		Symbols:     symbols,
	})

	file := &store.File{
		FileID:         id,
		Path:           c.Path,
		Language:       c.Language,
		ContentHash:    c.ContentHash,
		Size:           c.Size,
		MTime:          c.ModTime,
		PartitionID:    part.PartitionID,
		AuthorityScore: part.AuthorityScore,
		EmbeddingText:  embText,
		Status:         store.EmbeddingStatusPending,
		IndexedAt:      time.Now(),
	}

	if err := o.metadata.UpsertFile(ctx, file, symbols, imports); err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}

	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	doc := &store.Document{
		FileID:         id,
		Path:           c.Path,
		Language:       c.Language,
		SymbolNames:    names,
		PartitionID:    part.PartitionID,
		AuthorityScore: part.AuthorityScore,
	}
	if err := o.lexical.Upsert(ctx, []*store.Document{doc}); err != nil {
		return fmt.Errorf("upsert lexical doc: %w", err)
	}

	return nil
}

// removeFile cascades a disappeared file's deletion across C6, C7, C8.
func (o *Orchestrator) removeFile(ctx context.Context, id string) error {
	if err := o.lexical.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete lexical doc: %w", err)
	}
	if err := o.vector.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	if err := o.metadata.DeleteFile(ctx, id); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	return nil
}

// embedPending selects embedding_status=pending files in batches, embeds
// them, upserts vectors, and transitions status. The embedder is called
// serially, one in-flight batch at a time, to respect backend rate limits.
//
// A vector dimension mismatch means the collection was built against a
// different embedding model than the one configured now; writing more
// vectors into it would silently corrupt the index, so it aborts the run
// outright rather than marking the batch failed and moving on.
func (o *Orchestrator) embedPending(ctx context.Context, opts Options) (int, []FileError, error) {
	batchSize := opts.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	var embedded int
	var errs []FileError

	for {
		select {
		case <-ctx.Done():
			errs = append(errs, FileError{Error: ctx.Err().Error()})
			return embedded, errs, nil
		default:
		}

		pending, err := o.metadata.ListPending(ctx, batchSize)
		if err != nil {
			errs = append(errs, FileError{Error: fmt.Sprintf("list pending: %v", err)})
			return embedded, errs, nil
		}
		if len(pending) == 0 {
			return embedded, errs, nil
		}

		texts := make([]string, len(pending))
		ids := make([]string, len(pending))
		for i, f := range pending {
			texts[i] = f.EmbeddingText
			ids[i] = f.FileID
		}

		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			for _, f := range pending {
				_ = o.metadata.MarkFailed(ctx, f.FileID)
				errs = append(errs, FileError{Path: f.Path, Error: fmt.Sprintf("embed: %v", err)})
			}
			continue
		}

		metas := make([]store.VectorMetadata, len(pending))
		for i, f := range pending {
			metas[i] = store.VectorMetadata{PartitionID: f.PartitionID, AuthorityScore: f.AuthorityScore, Path: f.Path}
		}
		if err := o.vector.Upsert(ctx, ids, vectors, metas); err != nil {
			var mismatch store.ErrDimensionMismatch
			if errors.As(err, &mismatch) {
				slog.Error("vector_dimension_mismatch",
					slog.Int("expected", mismatch.Expected),
					slog.Int("got", mismatch.Got))
				errs = append(errs, FileError{Error: fmt.Sprintf("vector upsert: %v", err)})
				return embedded, errs, fmt.Errorf("embed pending: %w", mismatch)
			}
			for _, f := range pending {
				_ = o.metadata.MarkFailed(ctx, f.FileID)
				errs = append(errs, FileError{Path: f.Path, Error: fmt.Sprintf("vector upsert: %v", err)})
			}
			continue
		}

		model := o.embedder.ModelName()
		for _, f := range pending {
			if err := o.metadata.MarkEmbedded(ctx, f.FileID, model); err != nil {
				errs = append(errs, FileError{Path: f.Path, Error: fmt.Sprintf("mark embedded: %v", err)})
				continue
			}
			embedded++
		}
	}
}

// forceClean truncates all three stores ahead of a full rebuild.
func (o *Orchestrator) forceClean(ctx context.Context) error {
	if err := o.metadata.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate metadata: %w", err)
	}
	ids := o.vector.AllIDs()
	if len(ids) > 0 {
		if err := o.vector.Delete(ctx, ids); err != nil {
			return fmt.Errorf("truncate vector store: %w", err)
		}
	}
	lexIDs, err := o.lexical.AllIDs()
	if err != nil {
		return fmt.Errorf("list lexical docs: %w", err)
	}
	if len(lexIDs) > 0 {
		if err := o.lexical.Delete(ctx, lexIDs); err != nil {
			return fmt.Errorf("truncate lexical index: %w", err)
		}
	}
	return nil
}

// Stats returns a read-only snapshot of per-store counts without running
// an index.
func (o *Orchestrator) Stats(ctx context.Context) (map[store.EmbeddingStatus]int, *store.IndexStats, error) {
	fileStats, err := o.metadata.Stats(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("index: metadata stats: %w", err)
	}
	return fileStats, o.lexical.Stats(), nil
}

// persistRunLog appends the run's outcome as a single JSON file under
// <dataDir>/logs/index/<run_id>.json.
func (o *Orchestrator) persistRunLog(stats *IndexStats, indexed, skipped []string, failed []runFailedDetail) error {
	logDir := filepath.Join(o.dataDir, "logs", "index")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	entry := runLog{
		Timestamp: stats.CompletedAt.UTC().Format(time.RFC3339),
		Summary:   stats,
		Details: runDetails{
			Indexed: indexed,
			Skipped: skipped,
			Failed:  failed,
		},
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run log: %w", err)
	}

	path := filepath.Join(logDir, stats.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	return os.Rename(tmp, path)
}

func resolveWorkers(n int) int {
	if n > 0 {
		return n
	}
	if cpu := runtime.NumCPU(); cpu < DefaultMaxWorkers {
		return cpu
	}
	return DefaultMaxWorkers
}

// fileID derives a deterministic file identifier from its canonical path.
func fileID(path string) string {
	return fmt.Sprintf("file_%016x", xxhash.Sum64String(path))
}
