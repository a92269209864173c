package embedtext

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// renderMarkdownBody parses source as markdown and returns its plain-text
// body (headings, paragraphs, list items; code blocks and raw HTML are
// skipped) truncated to roughly maxTokens tokens.
func renderMarkdownBody(source []byte, maxTokens int) string {
	reader := text.NewReader(source)
	root := markdownParser.Parse(reader)

	var b strings.Builder
	maxChars := maxTokens * tokensPerChar

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			t := n.(*ast.Text)
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		if b.Len() >= maxChars {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return ""
	}

	body := strings.Join(strings.Fields(b.String()), " ")
	if len(body) > maxChars {
		body = body[:maxChars]
	}
	return body
}
