// Package config loads and validates the project configuration file
// (.symgraph.yaml) that governs scanning, partitioning, embedding, and
// hybrid search behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete project configuration. Every field has a
// documented default from DefaultConfig; a .symgraph.yaml file only needs
// to set the fields it wants to override.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
}

// PathsConfig layers project-specific globs on top of the scanner's
// built-in include/exclude defaults and gitignore handling.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig configures hybrid search fusion.
type SearchConfig struct {
	// SemanticWeight is the weight given to normalized vector similarity
	// in hybrid fusion (0.0-1.0). Must sum to 1.0 with LexicalWeight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight" validate:"min=0,max=1"`

	// LexicalWeight is the weight given to normalized BM25 score in
	// hybrid fusion (0.0-1.0). Must sum to 1.0 with SemanticWeight.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight" validate:"min=0,max=1"`

	// FusionMode selects how semantic and lexical scores combine with
	// partition authority: "multiplicative" (default) or "additive_log".
	FusionMode string `yaml:"fusion_mode" json:"fusion_mode" validate:"oneof=multiplicative additive_log"`

	// DefaultK is the default result count for a search when the caller
	// doesn't specify one.
	DefaultK int `yaml:"default_k" json:"default_k" validate:"min=1"`

	// BM25K1 and BM25B are the BM25 scoring tuning parameters.
	BM25K1 float64 `yaml:"bm25_k1" json:"bm25_k1" validate:"min=0"`
	BM25B  float64 `yaml:"bm25_b" json:"bm25_b" validate:"min=0,max=1"`
}

// EmbeddingsConfig configures the embedder adapter (C5).
type EmbeddingsConfig struct {
	// Provider selects the embedder implementation: "http" (OpenAI-compatible
	// endpoint, default) or "fallback" (deterministic local hashed-feature
	// embedder, opt-in only).
	Provider string `yaml:"provider" json:"provider" validate:"omitempty,oneof=http fallback"`

	BaseURL    string `yaml:"base_url" json:"base_url"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions" validate:"min=0"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size" validate:"min=1"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size" validate:"min=0"`

	// APIKey is read from an environment variable, never stored in the
	// config file itself.
	APIKey string `yaml:"-" json:"-"`
}

// IndexingConfig configures the indexer orchestrator (C9).
type IndexingConfig struct {
	MaxWorkers     int  `yaml:"max_workers" json:"max_workers" validate:"min=0"`
	EmbedBatchSize int  `yaml:"embed_batch_size" json:"embed_batch_size" validate:"min=1"`
	ForceClean     bool `yaml:"force_clean" json:"force_clean"`
}

// defaultExcludePatterns are always layered under a project's own excludes.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/go.sum",
}

// DefaultConfig returns a Config populated with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Search: SearchConfig{
			SemanticWeight: 0.7,
			LexicalWeight:  0.3,
			FusionMode:     "multiplicative",
			DefaultK:       10,
			BM25K1:         1.2,
			BM25B:          0.75,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "http",
			BaseURL:    "http://localhost:11434/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 0, // 0 lets the embedder auto-detect from its first response
			BatchSize:  32,
			CacheSize:  1000,
		},
		Indexing: IndexingConfig{
			MaxWorkers:     runtime.NumCPU(),
			EmbedBatchSize: 32,
			ForceClean:     false,
		},
	}
}

// fileCandidates returns the config file names checked, in precedence order.
func fileCandidates(dir string) []string {
	return []string{
		filepath.Join(dir, ".symgraph.yaml"),
		filepath.Join(dir, ".symgraph.yml"),
	}
}

// Load reads .symgraph.yaml (or .yml) from dir, merges it over the
// defaults, applies SYMGRAPH_* environment overrides, and validates the
// result. A missing config file is not an error; Load returns defaults
// with environment overrides applied.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range fileCandidates(dir) {
		if !fileExists(path) {
			continue
		}
		if err := cfg.mergeFromFile(path); err != nil {
			return nil, err
		}
		break
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays every non-zero field of other onto c, except
// Paths.Exclude, whose entries are appended to c's excludes.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.FusionMode != "" {
		c.Search.FusionMode = other.Search.FusionMode
	}
	if other.Search.DefaultK != 0 {
		c.Search.DefaultK = other.Search.DefaultK
	}
	if other.Search.BM25K1 != 0 {
		c.Search.BM25K1 = other.Search.BM25K1
	}
	if other.Search.BM25B != 0 {
		c.Search.BM25B = other.Search.BM25B
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Indexing.MaxWorkers != 0 {
		c.Indexing.MaxWorkers = other.Indexing.MaxWorkers
	}
	if other.Indexing.EmbedBatchSize != 0 {
		c.Indexing.EmbedBatchSize = other.Indexing.EmbedBatchSize
	}
	if other.Indexing.ForceClean {
		c.Indexing.ForceClean = other.Indexing.ForceClean
	}
}

// applyEnvOverrides applies SYMGRAPH_* environment variable overrides,
// the highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SYMGRAPH_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("SYMGRAPH_LEXICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("SYMGRAPH_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SYMGRAPH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SYMGRAPH_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	// APIKey is never read from the config file; the environment is its
	// only source.
	if v := os.Getenv("SYMGRAPH_EMBEDDINGS_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("SYMGRAPH_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Indexing.MaxWorkers = n
		}
	}
}

var structValidator = validator.New()

// Validate checks struct-tag constraints and the cross-field invariant
// that hybrid search weights must sum to 1.0.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return err
	}

	sum := c.Search.SemanticWeight + c.Search.LexicalWeight
	if diff := sum - 1.0; diff > 0.01 || diff < -0.01 {
		return fmt.Errorf("search.semantic_weight + search.lexical_weight must equal 1.0, got %.2f", sum)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory or
// a .symgraph.yaml/.yml file, falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	dir := absDir
	for {
		if dirExists(filepath.Join(dir, ".git")) {
			return dir, nil
		}
		for _, name := range []string{".symgraph.yaml", ".symgraph.yml"} {
			if fileExists(filepath.Join(dir, name)) {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
