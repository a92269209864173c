package embedtext

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeindex/symgraph/internal/store"
)

// Builder constructs embedding text deterministically from a file's path,
// language, extracted symbols, and content.
type Builder struct {
	opts Options
}

func NewBuilder(opts Options) *Builder {
	if opts.MaxSymbolNames == 0 && opts.MaxDocChars == 0 && opts.MaxBodyTokens == 0 {
		opts = DefaultOptions()
	}
	return &Builder{opts: opts}
}

// Build produces the embedding text for in. Doc files (markdown) get their
// rendered body appended; everything else gets the leading file comment.
func (b *Builder) Build(in Input) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s (%s)", in.Path, in.Language))

	if names := b.exportedNames(in.Symbols); names != "" {
		lines = append(lines, names)
	}

	if doc := leadingComment(in.Source, in.Language, b.opts.MaxDocChars); doc != "" {
		lines = append(lines, doc)
	}

	if in.ContentType == "markdown" {
		if body := renderMarkdownBody(in.Source, b.opts.MaxBodyTokens); body != "" {
			lines = append(lines, body)
		}
	}

	return strings.Join(lines, "\n\n")
}

// exportedNames lists the first MaxSymbolNames exported symbols (in
// extraction order) as "kind name", sorted alphabetically.
func (b *Builder) exportedNames(symbols []*store.Symbol) string {
	var names []string
	for _, s := range symbols {
		if !s.IsExported {
			continue
		}
		names = append(names, fmt.Sprintf("%s %s", s.Kind, s.Name))
		if len(names) >= b.opts.MaxSymbolNames {
			break
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names) // stable, language-independent ordering
	return strings.Join(names, ", ")
}

var commentPrefixes = map[string][]string{
	"go":         {"//"},
	"typescript": {"//"},
	"tsx":        {"//"},
	"javascript": {"//"},
	"jsx":        {"//"},
	"python":     {"#"},
}

// leadingComment returns the contiguous block of comment lines at the very
// top of the file (a file banner or package doc comment), truncated to
// maxChars. It returns "" for languages without a known comment syntax or
// files that don't open with one.
func leadingComment(source []byte, language string, maxChars int) string {
	prefixes, ok := commentPrefixes[language]
	if !ok {
		return ""
	}

	var collected []string
	for _, raw := range strings.Split(string(source), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			if len(collected) == 0 {
				continue
			}
			break
		}
		matched := false
		for _, p := range prefixes {
			if strings.HasPrefix(line, p) {
				collected = append(collected, strings.TrimSpace(strings.TrimPrefix(line, p)))
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}

	text := strings.TrimSpace(strings.Join(collected, " "))
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}
