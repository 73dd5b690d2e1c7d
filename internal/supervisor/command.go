package supervisor

import (
	"fmt"
	"os/exec"
	"strings"
)

// Command is the closed set of lifecycle operations. Dispatch over Command
// is an exhaustive switch; free-form strings are rejected in ParseCommand.
type Command int

const (
	CommandStart Command = iota
	CommandStop
	CommandRestart
	CommandStatus
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	case CommandRestart:
		return "restart"
	case CommandStatus:
		return "status"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand maps a CLI argument to a Command.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "start":
		return CommandStart, nil
	case "stop":
		return CommandStop, nil
	case "restart":
		return CommandRestart, nil
	case "status":
		return CommandStatus, nil
	default:
		return 0, fmt.Errorf("unknown command %q", s)
	}
}

// buildCommand constructs an *exec.Cmd for a command line string. It avoids
// invoking a shell when not necessary and respects an explicit shell
// invocation already present in the string, so "sh -c '...'" is not wrapped
// in a second shell layer.
func buildCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if after, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", after)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects "sh -c <ARG>" style prefixes and returns the
// argument after -c verbatim, stripping one pair of surrounding quotes so
// redirections inside the script keep working.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
