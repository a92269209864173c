package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"", []string{}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, SplitCamelCase(tc.input))
	}
}

func TestTokenizeCode(t *testing.T) {
	tokens := TokenizeCode("func ParseHTTPRequest(ctx context.Context)")
	assert.Contains(t, tokens, "parse")
	assert.Contains(t, tokens, "http")
	assert.Contains(t, tokens, "request")
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap([]string{"func", "ctx"})
	filtered := FilterStopWords([]string{"func", "greet", "ctx"}, stop)
	assert.Equal(t, []string{"greet"}, filtered)
}
