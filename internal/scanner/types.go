// Package scanner implements the file walker and change detector: it
// discovers indexable files under a root directory, fingerprints their
// content, and classifies each as fresh, stale, or unchanged relative to
// whatever a metadata store already knows about it.
package scanner

import "time"

// ContentType represents the type of content in a file.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
	ContentTypeConfig   ContentType = "config"
)

// ChangeStatus classifies a discovered file relative to prior index state.
type ChangeStatus string

const (
	// StatusFresh means no record exists yet for this path.
	StatusFresh ChangeStatus = "fresh"
	// StatusStale means a record exists but its content_hash differs.
	StatusStale ChangeStatus = "stale"
	// StatusUnchanged means a record exists with a matching content_hash.
	StatusUnchanged ChangeStatus = "unchanged"
)

// Candidate is a single file discovered by a scan, fingerprinted and
// classified against the prior index state.
type Candidate struct {
	Path        string // relative to RootDir, forward-slash separated
	AbsPath     string
	Size        int64
	ModTime     time.Time
	ContentHash string
	ContentType ContentType
	Language    string
	IsGenerated bool
	Status      ChangeStatus
}

// KnownFile is the subset of prior index state the scanner needs in order
// to classify a candidate without depending on the metadata store package.
type KnownFile struct {
	ContentHash string
}

// Lookup resolves a relative path to its previously recorded content hash,
// if any. Implementations are expected to be backed by a metadata store's
// ListAllPaths.
type Lookup func(path string) (KnownFile, bool)

// ScanOptions configures a scan.
type ScanOptions struct {
	RootDir string

	// IncludePatterns are doublestar globs; empty means include everything
	// not otherwise excluded.
	IncludePatterns []string

	// ExcludePatterns are doublestar globs layered on top of the built-in
	// defaults (vendor/, node_modules/, .git/, etc).
	ExcludePatterns []string

	RespectGitignore bool
	Workers          int
	MaxFileSize      int64
	FollowSymlinks   bool

	// ProgressFunc, when set, is called once per discovered candidate
	// during the walk.
	ProgressFunc func(scanned int)
}

// DryRunStats summarizes a scan without requiring the caller to drain the
// candidate channel into memory first. See dry-run report.
type DryRunStats struct {
	Total     int
	Fresh     int
	Stale     int
	Unchanged int
}

// Result is returned from the scanner channel.
type Result struct {
	Candidate *Candidate
	Error     error
}

const DefaultMaxFileSize = 10 * 1024 * 1024

var languageMap = map[string]string{
	".go": "go",

	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",

	".py":  "python",
	".pyw": "python",
	".pyi": "python",

	".html": "html",
	".htm":  "html",
	".css":  "css",
	".scss": "scss",
	".sass": "sass",
	".less": "less",

	".json":       "json",
	".yaml":       "yaml",
	".yml":        "yaml",
	".toml":       "toml",
	".xml":        "xml",
	".ini":        "ini",
	".conf":       "config",
	".properties": "properties",

	".md":       "markdown",
	".mdx":      "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".txt":      "text",

	".sh":   "shell",
	".bash": "shell",
	".zsh":  "shell",
	".fish": "fish",

	".rb":   "ruby",
	".rake": "ruby",
	".erb":  "erb",

	".rs": "rust",

	".java": "java",
	".kt":   "kotlin",
	".kts":  "kotlin",

	".c":   "c",
	".h":   "c",
	".cpp": "cpp",
	".hpp": "cpp",
	".cc":  "cpp",
	".cxx": "cpp",

	".cs": "csharp",

	".swift": "swift",

	".php": "php",

	".scala": "scala",

	".ex":  "elixir",
	".exs": "elixir",
	".erl": "erlang",

	".hs": "haskell",

	".lua": "lua",

	".r": "r",
	".R": "r",

	".sql": "sql",

	"Dockerfile": "dockerfile",

	"Makefile":    "makefile",
	"makefile":    "makefile",
	"GNUmakefile": "makefile",

	".vue":     "vue",
	".svelte":  "svelte",
	".graphql": "graphql",
	".gql":     "graphql",
	".proto":   "protobuf",
}

var contentTypeMap = map[string]ContentType{
	"go":         ContentTypeCode,
	"javascript": ContentTypeCode,
	"typescript": ContentTypeCode,
	"python":     ContentTypeCode,
	"ruby":       ContentTypeCode,
	"rust":       ContentTypeCode,
	"java":       ContentTypeCode,
	"kotlin":     ContentTypeCode,
	"c":          ContentTypeCode,
	"cpp":        ContentTypeCode,
	"csharp":     ContentTypeCode,
	"swift":      ContentTypeCode,
	"php":        ContentTypeCode,
	"scala":      ContentTypeCode,
	"elixir":     ContentTypeCode,
	"erlang":     ContentTypeCode,
	"haskell":    ContentTypeCode,
	"lua":        ContentTypeCode,
	"r":          ContentTypeCode,
	"sql":        ContentTypeCode,
	"shell":      ContentTypeCode,
	"fish":       ContentTypeCode,
	"erb":        ContentTypeCode,
	"vue":        ContentTypeCode,
	"svelte":     ContentTypeCode,
	"graphql":    ContentTypeCode,
	"protobuf":   ContentTypeCode,
	"html":       ContentTypeCode,
	"css":        ContentTypeCode,
	"scss":       ContentTypeCode,
	"sass":       ContentTypeCode,
	"less":       ContentTypeCode,

	"markdown": ContentTypeMarkdown,
	"rst":      ContentTypeMarkdown,

	"text": ContentTypeText,

	"json":       ContentTypeConfig,
	"yaml":       ContentTypeConfig,
	"toml":       ContentTypeConfig,
	"xml":        ContentTypeConfig,
	"ini":        ContentTypeConfig,
	"config":     ContentTypeConfig,
	"properties": ContentTypeConfig,
	"dockerfile": ContentTypeConfig,
	"makefile":   ContentTypeConfig,
}

// DetectLanguage detects the programming language from a file path.
func DetectLanguage(path string) string {
	base := baseName(path)
	if lang, ok := languageMap[base]; ok {
		return lang
	}
	ext := extension(path)
	if lang, ok := languageMap[ext]; ok {
		return lang
	}
	return ""
}

// DetectContentType detects the content type from a language.
func DetectContentType(language string) ContentType {
	if ct, ok := contentTypeMap[language]; ok {
		return ct
	}
	return ContentTypeText
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
