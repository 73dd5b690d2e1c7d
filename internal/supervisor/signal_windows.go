//go:build windows

package supervisor

import "syscall"

const processTerminate = 0x0001

// pidAlive returns true if a process with the given pid exists on Windows.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	return true
}

// isZombie is a no-op on Windows; process handles disappear on exit.
func isZombie(_ int) bool { return false }

// terminatePID and killPID both map to TerminateProcess; Windows has no
// ignorable termination signal, so the graceful and forceful paths collapse.
func terminatePID(pid int) error { return terminateProcess(pid) }

func killPID(pid int) error { return terminateProcess(pid) }

func terminateProcess(pid int) error {
	if pid <= 0 {
		return nil
	}
	h, err := syscall.OpenProcess(processTerminate, false, uint32(pid))
	if err != nil {
		// Process already gone; treat as terminated.
		return nil
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	return syscall.TerminateProcess(h, 1)
}
