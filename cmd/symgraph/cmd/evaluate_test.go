package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindex/symgraph/internal/metrics"
)

func TestEvaluateCmd_ScoresIndexedRepository(t *testing.T) {
	withFallbackRepo(t)

	indexCmd := newIndexCmd()
	indexCmd.SetArgs([]string{})
	require.NoError(t, indexCmd.Execute())

	judgmentsPath := filepath.Join(t.TempDir(), "judgments.yaml")
	judgmentsYAML := `
k: 5
queries:
  - query: "RateLimiter"
    judgments:
      - file: "sample.go"
        relevance: 3
`
	require.NoError(t, os.WriteFile(judgmentsPath, []byte(judgmentsYAML), 0o644))

	evalCmd := newEvaluateCmd()
	buf := new(bytes.Buffer)
	evalCmd.SetOut(buf)
	evalCmd.SetArgs([]string{"--mode", "keyword", judgmentsPath})

	require.NoError(t, evalCmd.Execute())

	var report metrics.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.Len(t, report.Queries, 1)
	require.Equal(t, "RateLimiter", report.Queries[0].Query)
}

func TestEvaluateCmd_MissingFileErrors(t *testing.T) {
	withFallbackRepo(t)

	evalCmd := newEvaluateCmd()
	evalCmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.yaml")})

	require.Error(t, evalCmd.Execute())
}
