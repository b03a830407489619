package utils

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

func ExecWith(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd
}

// CmdCombinedOutput runs cmd and returns stdout and stderr interleaved. On
// failure the captured output is attached to the error.
func CmdCombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return nil, errors.Wrapf(err, "%s: %s", cmd.Path, msg)
		}
		return nil, errors.Wrap(err, cmd.Path)
	}
	return out.Bytes(), nil
}
