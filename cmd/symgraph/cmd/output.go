package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// isTTY reports whether w is a terminal eligible for color output.
func isTTY(w io.Writer) bool {
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

const (
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// bold wraps s in bold escape codes when color output is enabled.
func bold(s string, color bool) string {
	if !color {
		return s
	}
	return ansiBold + s + ansiReset
}
