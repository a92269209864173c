package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeindex/symgraph/internal/gitignore"
)

const gitignoreCacheSize = 1000

// Scanner discovers indexable files in a project directory and fingerprints
// their content. A Scanner is safe for concurrent use.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan walks opts.RootDir and streams a Result per discovered, non-excluded
// file. lookup, if non-nil, is consulted to classify each candidate as
// fresh, stale, or unchanged; with a nil lookup every candidate is fresh.
// The returned channel is closed once the walk completes or ctx is done.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions, lookup Lookup) (<-chan Result, error) {
	if opts.RootDir == "" {
		return nil, fmt.Errorf("scanner: RootDir is required")
	}
	absRoot, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root %q is not a directory", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan Result, workers*2)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, &opts, maxFileSize, lookup, results)
	}()
	return results, nil
}

// DryRun drains a scan and returns counts only, without retaining any
// candidate in memory.
func (s *Scanner) DryRun(ctx context.Context, opts ScanOptions, lookup Lookup) (DryRunStats, error) {
	var stats DryRunStats
	ch, err := s.Scan(ctx, opts, lookup)
	if err != nil {
		return stats, err
	}
	for res := range ch {
		if res.Error != nil {
			continue
		}
		stats.Total++
		switch res.Candidate.Status {
		case StatusFresh:
			stats.Fresh++
		case StatusStale:
			stats.Stale++
		case StatusUnchanged:
			stats.Unchanged++
		}
	}
	return stats, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, lookup Lookup, results chan<- Result) {
	scanned := 0
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.shouldExcludeFile(relPath, absRoot, opts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAnyGlob(relPath, opts.IncludePatterns) {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			return nil
		}

		language := DetectLanguage(relPath)
		status := StatusFresh
		if lookup != nil {
			if known, ok := lookup(relPath); ok {
				if known.ContentHash == hash {
					status = StatusUnchanged
				} else {
					status = StatusStale
				}
			}
		}

		candidate := &Candidate{
			Path:        relPath,
			AbsPath:     path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			ContentHash: hash,
			ContentType: DetectContentType(language),
			Language:    language,
			IsGenerated: isGeneratedFile(path),
			Status:      status,
		}

		scanned++
		if opts.ProgressFunc != nil {
			opts.ProgressFunc(scanned)
		}

		select {
		case results <- Result{Candidate: candidate}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Error: err}:
		case <-ctx.Done():
		}
	}
}

// hashFile fingerprints a file's content with a streaming 64-bit hash,
// rendered as lowercase hex for storage in File.ContentHash.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func (s *Scanner) shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	base := filepath.Base(relPath)
	for _, name := range defaultExcludeDirNames {
		if base == name {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if dirMatchesGlob(pattern, relPath) {
			return true
		}
	}
	return false
}

func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)

	for _, pattern := range sensitiveFilePatterns {
		if ok, _ := doublestar.Match(pattern, baseName); ok {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
		return true
	}
	return false
}

func matchesAnyGlob(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// dirMatchesGlob tests an exclude pattern against a directory path, trying
// both the pattern as given and with a trailing "/**" stripped so that
// "vendor/**" also prunes the "vendor" directory itself.
func dirMatchesGlob(pattern, relPath string) bool {
	if ok, _ := doublestar.Match(pattern, relPath); ok {
		return true
	}
	if trimmed := strings.TrimSuffix(pattern, "/**"); trimmed != pattern {
		if ok, _ := doublestar.Match(trimmed, relPath); ok {
			return true
		}
	}
	return false
}

func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

func isGeneratedFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	content := string(buf[:n])

	markers := []string{
		"// Code generated",
		"// DO NOT EDIT",
		"/* DO NOT EDIT",
		"# Generated by",
		"<!-- AUTO-GENERATED -->",
	}
	for _, marker := range markers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	rootMatcher := s.getGitignoreMatcher(absRoot, "")
	if rootMatcher != nil && rootMatcher.Match(relPath, false) {
		return true
	}

	parts := strings.Split(filepath.Dir(relPath), "/")
	currentDir := absRoot
	currentBase := ""
	for _, part := range parts {
		if part == "." || part == "" {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = currentBase + "/" + part
		}
		matcher := s.getGitignoreMatcher(currentDir, currentBase)
		if matcher != nil && matcher.Match(relPath, false) {
			return true
		}
	}
	return false
}

func (s *Scanner) getGitignoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		return nil
	}
	matcher = gitignore.New()
	if err := matcher.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()
	return matcher
}

// InvalidateGitignoreCache clears the gitignore matcher cache. Call this
// when .gitignore files change mid-process.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

var defaultExcludeDirNames = []string{
	"node_modules", ".git", "vendor", "__pycache__", "dist", "build",
	".aws", ".gcp", ".azure", ".ssh",
}

var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
