package main

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"
)

func runCLI(args ...string) error {
	root := buildRoot()
	root.SetArgs(args)
	return root.Execute()
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func lifecycleArgs(t *testing.T, cmd string, op string, extra ...string) []string {
	t.Helper()
	dir := t.TempDir()
	args := []string{
		op,
		"--command", cmd,
		"--pid-file", filepath.Join(dir, "rdhost.pid"),
		"--log-file", filepath.Join(dir, "rdhost.log"),
		"--grace", "500ms",
		"--delay", "50ms",
	}
	return append(args, extra...)
}

func TestBareInvocationFails(t *testing.T) {
	err := runCLI()
	if exitCodeOf(err) != 1 {
		t.Fatalf("bare invocation: err=%v", err)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	if err := runCLI("frobnicate"); err == nil {
		t.Fatal("unknown command must fail")
	}
}

func TestLifecycleExitCodes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix sleep")
	}
	dir := t.TempDir()
	common := []string{
		"--command", "sleep 30",
		"--pid-file", filepath.Join(dir, "rdhost.pid"),
		"--log-file", filepath.Join(dir, "rdhost.log"),
		"--grace", "500ms",
		"--delay", "50ms",
	}
	run := func(op string) error { return runCLI(append([]string{op}, common...)...) }

	if err := run("status"); exitCodeOf(err) != 1 {
		t.Fatalf("status before start: %v", err)
	}
	if err := run("start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = run("stop") }()

	if err := run("status"); err != nil {
		t.Fatalf("status while running: %v", err)
	}
	if err := run("start"); exitCodeOf(err) != 1 {
		t.Fatalf("second start must exit 1: %v", err)
	}
	if err := run("stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := run("stop"); exitCodeOf(err) != 1 {
		t.Fatalf("stop when stopped must exit 1: %v", err)
	}
	if err := run("status"); exitCodeOf(err) != 1 {
		t.Fatalf("status after stop: %v", err)
	}
}

func TestRestartFromStopped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix sleep")
	}
	args := lifecycleArgs(t, "sleep 30", "restart")
	if err := runCLI(args...); err != nil {
		t.Fatalf("restart from stopped: %v", err)
	}
	stop := append([]string{"stop"}, args[1:]...)
	if err := runCLI(stop...); err != nil {
		t.Fatalf("cleanup stop: %v", err)
	}
}
