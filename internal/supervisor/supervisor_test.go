package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func waitUntil(timeout, step time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(step)
	}
	return false
}

// newTestSupervisor builds a supervisor with short waits so tests do not
// burn real seconds on the grace and restart windows.
func newTestSupervisor(t *testing.T, command string) (*Supervisor, Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Command:      command,
		PIDFile:      filepath.Join(dir, "rdhost.pid"),
		LogFile:      filepath.Join(dir, "rdhost.log"),
		GracePeriod:  500 * time.Millisecond,
		RestartDelay: 50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
	return New(cfg), cfg
}

func TestStartStatusStop(t *testing.T) {
	requireUnix(t)
	s, cfg := newTestSupervisor(t, "sleep 5")

	pid, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("invalid pid %d", pid)
	}
	rec, err := ReadRecord(cfg.PIDFile)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if rec.PID != pid {
		t.Fatalf("record pid %d != started pid %d", rec.PID, pid)
	}

	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.PID != pid {
		t.Fatalf("expected running with pid %d, got %+v", pid, st)
	}
	if st.Port != DefaultPort {
		t.Fatalf("expected descriptive port %d, got %d", DefaultPort, st.Port)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := os.Stat(cfg.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("pid record must be gone after stop, stat err=%v", err)
	}
	st, err = s.Status()
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if st.Running {
		t.Fatalf("expected not running, got %+v", st)
	}
}

func TestStartTwiceFailsWithoutSideEffects(t *testing.T) {
	requireUnix(t)
	s, cfg := newTestSupervisor(t, "sleep 5")
	pid, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if _, err := s.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start: want ErrAlreadyRunning, got %v", err)
	}
	rec, err := ReadRecord(cfg.PIDFile)
	if err != nil || rec.PID != pid {
		t.Fatalf("record altered by failed start: %+v, %v", rec, err)
	}
}

func TestStopNotRunning(t *testing.T) {
	s, cfg := newTestSupervisor(t, "sleep 5")
	if err := s.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("want ErrNotRunning, got %v", err)
	}
	if _, err := os.Stat(cfg.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("stop must not leave a pid record behind")
	}
}

func TestStaleRecordSelfHeals(t *testing.T) {
	requireUnix(t)
	s, cfg := newTestSupervisor(t, "sleep 5")

	// Fabricate a record naming a process that already exited.
	probe := exec.Command("true")
	if err := probe.Run(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	deadPID := probe.Process.Pid
	if err := WriteRecord(cfg.PIDFile, Record{PID: deadPID}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running || !st.Stale {
		t.Fatalf("expected stale report, got %+v", st)
	}
	if _, err := os.Stat(cfg.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("stale record must be cleaned up by status")
	}

	// A subsequent stop sees no record and reports not running.
	if err := s.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("stop after stale cleanup: want ErrNotRunning, got %v", err)
	}
}

func TestStopDetectsStaleRecord(t *testing.T) {
	requireUnix(t)
	s, cfg := newTestSupervisor(t, "sleep 5")
	probe := exec.Command("true")
	if err := probe.Run(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := WriteRecord(cfg.PIDFile, Record{PID: probe.Process.Pid}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := s.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("want ErrNotRunning for stale record, got %v", err)
	}
	if _, err := os.Stat(cfg.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("stale record must be deleted by stop")
	}
}

func TestStartReclaimsStaleRecord(t *testing.T) {
	requireUnix(t)
	s, cfg := newTestSupervisor(t, "sleep 5")
	probe := exec.Command("true")
	if err := probe.Run(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := WriteRecord(cfg.PIDFile, Record{PID: probe.Process.Pid}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	pid, err := s.Start()
	if err != nil {
		t.Fatalf("start over stale record: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()
	rec, err := ReadRecord(cfg.PIDFile)
	if err != nil || rec.PID != pid {
		t.Fatalf("record not replaced: %+v, %v", rec, err)
	}
}

func TestRestartYieldsDifferentPID(t *testing.T) {
	requireUnix(t)
	s, _ := newTestSupervisor(t, "sleep 5")
	first, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := s.Restart(context.Background())
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()
	if second == first {
		t.Fatalf("restart must launch a new process, pid stayed %d", first)
	}
	st, err := s.Status()
	if err != nil || !st.Running || st.PID != second {
		t.Fatalf("expected running with pid %d, got %+v err=%v", second, st, err)
	}
}

func TestRestartFromStopped(t *testing.T) {
	requireUnix(t)
	s, _ := newTestSupervisor(t, "sleep 5")
	pid, err := s.Restart(context.Background())
	if err != nil {
		t.Fatalf("restart from stopped: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()
	if pid <= 0 {
		t.Fatalf("invalid pid %d", pid)
	}
}

func TestForcefulKillAfterGracePeriod(t *testing.T) {
	requireUnix(t)
	// The child ignores SIGTERM, so only the SIGKILL escalation can end it.
	s, _ := newTestSupervisor(t, `sh -c 'trap "" TERM; sleep 30'`)
	pid, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	start := time.Now()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Fatalf("stop returned before the grace period elapsed: %v", elapsed)
	}
	gone := waitUntil(time.Second, 10*time.Millisecond, func() bool {
		return !(Record{PID: pid}).Alive()
	})
	if !gone {
		t.Fatalf("pid %d survived forceful kill", pid)
	}
}

func TestLogTruncatedOnStart(t *testing.T) {
	requireUnix(t)
	s, cfg := newTestSupervisor(t, `sh -c 'echo run; sleep 5'`)
	if _, err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ok := waitUntil(2*time.Second, 20*time.Millisecond, func() bool {
		b, err := os.ReadFile(cfg.LogFile)
		return err == nil && strings.Contains(string(b), "run")
	})
	if !ok {
		t.Fatalf("child output did not reach log file")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Pollute the log, then verify a fresh start truncates it.
	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("LEFTOVER\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	if _, err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()
	ok = waitUntil(2*time.Second, 20*time.Millisecond, func() bool {
		b, err := os.ReadFile(cfg.LogFile)
		return err == nil && strings.Contains(string(b), "run") && !strings.Contains(string(b), "LEFTOVER")
	})
	if !ok {
		b, _ := os.ReadFile(cfg.LogFile)
		t.Fatalf("log not truncated on start, contents: %q", string(b))
	}
}

func TestStopCancellable(t *testing.T) {
	requireUnix(t)
	s, _ := newTestSupervisor(t, `sh -c 'trap "" TERM; sleep 30'`)
	s.cfg.GracePeriod = 10 * time.Second
	pid, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = s.Stop(ctx)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancelled stop still blocked for %v", elapsed)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cancelled stop returned %v, want deadline exceeded", err)
	}

	// Abandoning the wait must not forfeit the child's grace: no SIGKILL
	// escalation, and the record stays for a later attempt.
	rec, err := ReadRecord(s.cfg.PIDFile)
	if err != nil || rec.PID != pid {
		t.Fatalf("record gone after cancelled stop: %+v, %v", rec, err)
	}
	if !rec.Alive() {
		t.Fatal("child was killed by a cancelled stop")
	}

	s.cfg.GracePeriod = 300 * time.Millisecond
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("follow-up stop: %v", err)
	}
	gone := waitUntil(2*time.Second, 10*time.Millisecond, func() bool {
		return !(Record{PID: pid}).Alive()
	})
	if !gone {
		t.Fatal("child survived the follow-up stop")
	}
}

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"start":   CommandStart,
		"stop":    CommandStop,
		"restart": CommandRestart,
		"status":  CommandStatus,
	}
	for in, want := range cases {
		got, err := ParseCommand(in)
		if err != nil || got != want {
			t.Fatalf("ParseCommand(%q) = %v, %v; want %v", in, got, err, want)
		}
		if got.String() != in {
			t.Fatalf("String() round trip failed for %q", in)
		}
	}
	if _, err := ParseCommand("reload"); err == nil {
		t.Fatal("unknown command must be rejected")
	}
	if _, err := ParseCommand(""); err == nil {
		t.Fatal("empty command must be rejected")
	}
}

func TestBuildCommandShellHandling(t *testing.T) {
	requireUnix(t)
	c := buildCommand("sleep 5")
	if len(c.Args) == 0 || c.Args[0] != "sleep" {
		t.Fatalf("expected direct exec, got %#v", c.Args)
	}
	c = buildCommand("echo hi | cat")
	if len(c.Args) < 2 || c.Args[0] != "/bin/sh" || c.Args[1] != "-c" {
		t.Fatalf("expected /bin/sh -c wrapping, got %#v", c.Args)
	}
	c = buildCommand(`sh -c 'echo hi'`)
	if len(c.Args) != 3 || c.Args[0] != "/bin/sh" || c.Args[2] != "echo hi" {
		t.Fatalf("explicit shell must not be double wrapped, got %#v", c.Args)
	}
}
