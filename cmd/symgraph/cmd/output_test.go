package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	buf := &bytes.Buffer{}

	result := isTTY(buf)

	assert.False(t, result)
}

func TestIsTTY_WithNil_ReturnsFalse(t *testing.T) {
	result := isTTY(nil)

	assert.False(t, result)
}

func TestBold_WithoutColor_ReturnsPlain(t *testing.T) {
	assert.Equal(t, "path.go", bold("path.go", false))
}

func TestBold_WithColor_WrapsInEscapeCodes(t *testing.T) {
	result := bold("path.go", true)

	assert.Contains(t, result, "path.go")
	assert.NotEqual(t, "path.go", result)
}
