//go:build !windows

package supervisor

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strconv"
	"syscall"
)

// pidAlive returns true if a process with the given pid exists (or EPERM,
// which still proves existence).
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// isZombie reports whether /proc marks the pid as a zombie on Linux. A child
// that exited but was not yet reaped still answers kill(pid, 0); treating it
// as live would stall the stop path.
func isZombie(pid int) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}

// terminatePID asks the process to shut down voluntarily.
func terminatePID(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// killPID is the non-ignorable escalation.
func killPID(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}
