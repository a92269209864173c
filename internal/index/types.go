// Package index provides the indexer orchestrator: it drives the walk,
// extract, embed, and store stages into two durable operations,
// index_repository and index_files.
package index

import (
	"time"
)

// Options configures an indexing run.
type Options struct {
	// Include/Exclude are doublestar globs layered on top of the
	// scanner's built-in defaults.
	Include []string
	Exclude []string

	// Files restricts the run to an explicit path list (index_files);
	// when empty, index_repository walks the whole root.
	Files []string

	// ForceClean truncates the metadata, vector, and lexical stores
	// before walking, for corruption recovery.
	ForceClean bool

	// MaxWorkers bounds extraction parallelism; zero uses
	// min(runtime.NumCPU(), DefaultMaxWorkers).
	MaxWorkers int

	// EmbedBatchSize bounds how many pending files are embedded per
	// call to the embedder; zero uses DefaultEmbedBatchSize.
	EmbedBatchSize int
}

// DefaultMaxWorkers bounds extraction parallelism when Options.MaxWorkers
// is unset.
const DefaultMaxWorkers = 8

// DefaultEmbedBatchSize bounds embedder batch size when
// Options.EmbedBatchSize is unset.
const DefaultEmbedBatchSize = 32

// FileError records a per-file failure accumulated during a run; other
// files continue processing around it.
type FileError struct {
	Path  string
	Error string
}

// Outcome classifies how a batch operation finished: success (nothing
// failed), partial (some per-file errors but the run kept going), or
// failure (nothing applied, or the run aborted outright).
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// IndexStats summarizes the outcome of one indexing run.
type IndexStats struct {
	RunID        string
	Outcome      Outcome
	Total        int
	Fresh        int
	Stale        int
	Unchanged    int
	Embedded     int
	Deleted      int
	ByLanguage   map[string]int
	Errors       []FileError
	Duration     time.Duration
	CacheHitRate float64
	StartedAt    time.Time
	CompletedAt  time.Time
}

// runLog is the append-only per-run JSON record persisted under
// var/storage/logs/index/<run_id>.json.
type runLog struct {
	Timestamp string      `json:"timestamp"`
	Summary   *IndexStats `json:"summary"`
	Details   runDetails  `json:"details"`
}

type runDetails struct {
	Indexed []string          `json:"indexed"`
	Skipped []string          `json:"skipped"`
	Failed  []runFailedDetail `json:"failed"`
}

type runFailedDetail struct {
	File  string `json:"file"`
	Error string `json:"error"`
}
