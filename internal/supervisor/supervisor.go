package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	// DefaultGracePeriod is how long Stop waits after SIGTERM before escalating.
	DefaultGracePeriod = 2 * time.Second
	// DefaultRestartDelay is the pause between stop and start during Restart.
	DefaultRestartDelay = 2 * time.Second
	// DefaultPollInterval is the liveness polling interval used while waiting
	// for the child to exit. Tests shrink it together with GracePeriod.
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultPort is printed by Status for operator convenience. It is the
	// listen port of the remote connection host this tool supervises and is
	// not verified against the live process.
	DefaultPort = 3389
)

var (
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
)

// Config describes the single supervised process.
// PIDFile and LogFile default to rdhost.pid / rdhost.log next to the
// executable when left empty (resolved by the CLI, not here).
type Config struct {
	Command      string        // command line that launches the server
	PIDFile      string        // PID record path
	LogFile      string        // combined stdout+stderr of the child, truncated on each start
	GracePeriod  time.Duration // SIGTERM -> SIGKILL escalation window
	RestartDelay time.Duration // pause between stop and start in Restart
	PollInterval time.Duration // liveness polling interval during waits
	Port         int           // descriptive listen port reported by Status
	Logger       *slog.Logger
}

// Status is a point-in-time liveness report derived from the PID record and
// the OS process table. Stale means a record existed but named a dead (or
// reused) PID; the record has already been removed when Stale is reported.
type Status struct {
	Running bool `json:"running"`
	Stale   bool `json:"stale"`
	PID     int  `json:"pid"`
	Port    int  `json:"port"`
}

// Supervisor manages one background server process through a PID record.
// It holds no state of its own between operations; everything lives in the
// PID file and the process table, so a Supervisor can be constructed fresh
// for every CLI invocation.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Supervisor {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Supervisor{cfg: cfg, logger: lg}
}

// Start launches the configured command as a detached child with combined
// stdout+stderr redirected to a freshly truncated log file, then persists the
// child PID. A live record fails with ErrAlreadyRunning and no side effects;
// a stale record is reclaimed first. The record is created with O_EXCL, so
// when two starts race exactly one persists a PID; the loser kills its own
// child and reports ErrAlreadyRunning.
func (s *Supervisor) Start() (int, error) {
	rec, err := ReadRecord(s.cfg.PIDFile)
	switch {
	case err == nil:
		if rec.Alive() {
			return 0, fmt.Errorf("pid %d: %w", rec.PID, ErrAlreadyRunning)
		}
		s.logger.Warn("removing stale pid record", "path", s.cfg.PIDFile, "pid", rec.PID)
		if err := RemoveRecord(s.cfg.PIDFile); err != nil {
			return 0, err
		}
	case os.IsNotExist(err):
		// not running
	default:
		return 0, err
	}

	logf, err := os.OpenFile(s.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open log: %w", err)
	}

	cmd := buildCommand(s.cfg.Command)
	cmd.Stdin = nil
	cmd.Stdout = logf
	cmd.Stderr = logf
	configureDetached(cmd)
	if err := cmd.Start(); err != nil {
		_ = logf.Close()
		return 0, fmt.Errorf("launch %q: %w", s.cfg.Command, err)
	}
	// The child owns its copy of the descriptor from here on.
	_ = logf.Close()

	pid := cmd.Process.Pid
	if err := WriteRecord(s.cfg.PIDFile, Record{PID: pid, StartUnix: procStartUnix(pid)}); err != nil {
		if os.IsExist(err) {
			// Lost the O_EXCL race to a concurrent start. The winner owns the
			// record; take down the extra child we just launched.
			_ = killPID(pid)
			_ = cmd.Process.Release()
			return 0, ErrAlreadyRunning
		}
		_ = cmd.Process.Release()
		return 0, fmt.Errorf("write pid record: %w", err)
	}
	_ = cmd.Process.Release()
	s.logger.Info("started", "pid", pid, "log", s.cfg.LogFile)
	return pid, nil
}

// Stop sends SIGTERM, waits up to GracePeriod polling liveness, escalates to
// SIGKILL if the child survived, and removes the PID record unconditionally
// once the graceful-or-forceful path completes. Cancelling ctx mid-grace
// abandons the stop instead of escalating: the child keeps its remaining
// grace and the record stays for a later attempt. Missing or stale records
// are cleaned up and reported as ErrNotRunning.
func (s *Supervisor) Stop(ctx context.Context) error {
	rec, err := ReadRecord(s.cfg.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotRunning
		}
		return err
	}
	if !rec.Alive() {
		_ = RemoveRecord(s.cfg.PIDFile)
		return fmt.Errorf("stale pid record for %d: %w", rec.PID, ErrNotRunning)
	}

	if err := terminatePID(rec.PID); err != nil {
		s.logger.Warn("graceful signal failed", "pid", rec.PID, "error", err)
	}
	exited, waitErr := s.waitExit(ctx, rec, s.cfg.GracePeriod)
	if waitErr != nil && !exited {
		s.logger.Warn("stop cancelled mid-grace", "pid", rec.PID)
		return waitErr
	}
	if !exited {
		s.logger.Warn("grace period elapsed, killing", "pid", rec.PID)
		_ = killPID(rec.PID)
	}
	if err := RemoveRecord(s.cfg.PIDFile); err != nil {
		return err
	}
	s.logger.Info("stopped", "pid", rec.PID)
	return nil
}

// Restart stops the child (ignoring not-running), pauses RestartDelay, and
// starts it again. There is no rollback: a failed start leaves the process
// stopped and surfaces the start error.
func (s *Supervisor) Restart(ctx context.Context) (int, error) {
	if err := s.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return 0, err
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(s.cfg.RestartDelay):
	}
	return s.Start()
}

// Status reports liveness from the PID record. A record naming a dead or
// reused PID is removed (self-healing) and reported as Stale.
func (s *Supervisor) Status() (Status, error) {
	st := Status{Port: s.cfg.Port}
	rec, err := ReadRecord(s.cfg.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	st.PID = rec.PID
	if rec.Alive() {
		st.Running = true
		return st, nil
	}
	st.Stale = true
	_ = RemoveRecord(s.cfg.PIDFile)
	return st, nil
}

// waitExit polls the record's liveness until the child exits, the window
// elapses, or ctx is cancelled. It reports whether the child is gone; on
// cancellation the ctx error is returned alongside the last liveness check.
func (s *Supervisor) waitExit(ctx context.Context, rec Record, window time.Duration) (bool, error) {
	deadline := time.Now().Add(window)
	t := time.NewTicker(s.cfg.PollInterval)
	defer t.Stop()
	for {
		if !rec.Alive() {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return !rec.Alive(), ctx.Err()
		case <-t.C:
		}
	}
}
