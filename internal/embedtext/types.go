// Package embedtext builds the deterministic text handed to the embedder
// for each file: relative path and language, the file's exported symbol
// names, a leading documentation block, and, for documentation files, the
// opening portion of the rendered body. Construction never depends on
// anything but a file's own content and extracted symbols, so re-running
// it against unchanged input reproduces the same text byte for byte.
package embedtext

import "github.com/codeindex/symgraph/internal/store"

// Options tunes how much of each source goes into the final text.
type Options struct {
	MaxSymbolNames int // exported symbols listed before truncation
	MaxDocChars    int // leading comment/docstring character budget
	MaxBodyTokens  int // markdown body token budget
}

// DefaultOptions mirrors the limits used across the builder's test fixtures.
func DefaultOptions() Options {
	return Options{
		MaxSymbolNames: 32,
		MaxDocChars:    600,
		MaxBodyTokens:  512,
	}
}

// tokensPerChar is the number of bytes allowed per token when the markdown
// body's token budget is turned into a byte budget.
const tokensPerChar = 4

// Input is everything the builder needs for one file.
type Input struct {
	Path        string
	Language    string
	ContentType string // "code", "markdown", "text", "config"
	Source      []byte
	Symbols     []*store.Symbol
}
