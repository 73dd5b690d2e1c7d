package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Println(ee.msg)
			}
			os.Exit(ee.code)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitError carries a process exit code through cobra's error path. The
// message, when set, goes to stdout so scripted callers can parse it.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func buildRoot() *cobra.Command {
	// SilenceUsage stays off at the root so an unknown subcommand prints the
	// usage text; the subcommands silence it for their own runtime errors.
	root := &cobra.Command{
		Use:           "rdhost",
		Short:         "Single-instance supervisor and remote connection host",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return &exitError{code: 1}
		},
	}

	lf := &lifecycleFlags{}
	root.AddCommand(
		newStartCmd(lf),
		newStopCmd(lf),
		newRestartCmd(lf),
		newStatusCmd(lf),
		newServeCmd(),
		newConnectCmd(),
		newUserCmd(),
	)
	return root
}
