package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyCmd_ReportsPartitionAndAuthority(t *testing.T) {
	withFallbackRepo(t)

	cmd := newClassifyCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"whiteboard/scratch-notes.md"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, buf.String(), "whiteboard")
	require.Contains(t, buf.String(), "0.10")
}

func TestClassifyCmd_JSONOutput(t *testing.T) {
	withFallbackRepo(t)

	cmd := newClassifyCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--json", ".claude/CLAUDE.md"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, buf.String(), `"partition_id": "dom0"`)
}
