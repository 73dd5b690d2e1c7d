package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/rdhost/internal/supervisor"
)

// lifecycleFlags configure the four supervisor subcommands. They share one
// flag set so start/stop/restart/status always agree on the PID record path.
type lifecycleFlags struct {
	Command string
	PIDFile string
	LogFile string
	Grace   time.Duration
	Delay   time.Duration
	Port    int
}

func (f *lifecycleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Command, "command", "", "command launching the server (default: this executable with 'serve')")
	cmd.Flags().StringVar(&f.PIDFile, "pid-file", "", "PID record path (default: next to the executable)")
	cmd.Flags().StringVar(&f.LogFile, "log-file", "", "server log path (default: next to the executable)")
	cmd.Flags().DurationVar(&f.Grace, "grace", supervisor.DefaultGracePeriod, "wait after the graceful signal before killing")
	cmd.Flags().DurationVar(&f.Delay, "delay", supervisor.DefaultRestartDelay, "pause between stop and start during restart")
	cmd.Flags().IntVar(&f.Port, "port", supervisor.DefaultPort, "port reported by status")
}

func (f *lifecycleFlags) supervisor() *supervisor.Supervisor {
	command := f.Command
	if command == "" {
		if exe, err := os.Executable(); err == nil {
			command = exe + " serve"
		}
	}
	pidFile := f.PIDFile
	if pidFile == "" {
		pidFile = defaultPIDFile()
	}
	logFile := f.LogFile
	if logFile == "" {
		logFile = defaultLogFile()
	}
	return supervisor.New(supervisor.Config{
		Command:      command,
		PIDFile:      pidFile,
		LogFile:      logFile,
		GracePeriod:  f.Grace,
		RestartDelay: f.Delay,
		Port:         f.Port,
	})
}

func newStartCmd(f *lifecycleFlags) *cobra.Command {
	return newLifecycleCmd(f, supervisor.CommandStart, "Launch the server as a detached child")
}

func newStopCmd(f *lifecycleFlags) *cobra.Command {
	return newLifecycleCmd(f, supervisor.CommandStop, "Terminate the server and remove its PID record")
}

func newRestartCmd(f *lifecycleFlags) *cobra.Command {
	return newLifecycleCmd(f, supervisor.CommandRestart, "Stop the server, pause, and start it again")
}

func newStatusCmd(f *lifecycleFlags) *cobra.Command {
	return newLifecycleCmd(f, supervisor.CommandStatus, "Report server liveness")
}

func newLifecycleCmd(f *lifecycleFlags, op supervisor.Command, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          op.String(),
		Short:        short,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, f, op)
		},
	}
	f.register(cmd)
	return cmd
}

// runLifecycle dispatches one lifecycle operation and translates the
// supervisor's error taxonomy into exit codes: already-running and
// not-running both exit 1, restart surfaces its final step.
func runLifecycle(cmd *cobra.Command, f *lifecycleFlags, op supervisor.Command) error {
	sup := f.supervisor()
	switch op {
	case supervisor.CommandStart:
		pid, err := sup.Start()
		if err != nil {
			if errors.Is(err, supervisor.ErrAlreadyRunning) {
				return &exitError{code: 1, msg: "Server is already running"}
			}
			return &exitError{code: 1, msg: "Failed to start server: " + err.Error()}
		}
		fmt.Printf("Server started (PID %d)\n", pid)
		return nil

	case supervisor.CommandStop:
		if err := sup.Stop(cmd.Context()); err != nil {
			if errors.Is(err, supervisor.ErrNotRunning) {
				return &exitError{code: 1, msg: "Server is not running"}
			}
			return &exitError{code: 1, msg: "Failed to stop server: " + err.Error()}
		}
		fmt.Println("Server stopped")
		return nil

	case supervisor.CommandRestart:
		pid, err := sup.Restart(cmd.Context())
		if err != nil {
			if errors.Is(err, supervisor.ErrAlreadyRunning) {
				return &exitError{code: 1, msg: "Server is already running"}
			}
			return &exitError{code: 1, msg: "Failed to restart server: " + err.Error()}
		}
		fmt.Printf("Server restarted (PID %d)\n", pid)
		return nil

	case supervisor.CommandStatus:
		st, err := sup.Status()
		if err != nil {
			return &exitError{code: 1, msg: "Failed to read status: " + err.Error()}
		}
		switch {
		case st.Running:
			fmt.Printf("Server is running (PID %d) on port %d\n", st.PID, st.Port)
			return nil
		case st.Stale:
			return &exitError{code: 1, msg: "Stale PID file removed, server is not running"}
		default:
			return &exitError{code: 1, msg: "Server is not running"}
		}

	default:
		return fmt.Errorf("unhandled command %v", op)
	}
}
