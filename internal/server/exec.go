package server

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds remote command execution.
const DefaultCommandTimeout = 30 * time.Second

// runCommand executes a remote command through the system shell and returns
// its stdout, stderr, and exit code. On timeout the partial stdout is kept
// and stderr reports the timeout, exit code 1.
func runCommand(ctx context.Context, command string, timeout time.Duration) (string, string, int) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(ctx, command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout.String(), "Command timed out", 1
	}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return stdout.String(), stderr.String(), ee.ExitCode()
		}
		return "", "Error executing command: " + err.Error(), 1
	}
	return stdout.String(), stderr.String(), 0
}
