//go:build !windows

package server

import (
	"context"
	"os/exec"
)

func shellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "/bin/sh", "-c", script)
}
