package utils

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmdCombinedOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out, err := CmdCombinedOutput(ExecWith(context.Background(), "sh", "-c", "echo out; echo err 1>&2"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "out")
	assert.Contains(t, string(out), "err")

	_, err = CmdCombinedOutput(ExecWith(context.Background(), "sh", "-c", "echo boom 1>&2; exit 3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
