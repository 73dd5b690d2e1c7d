package main

import (
	"os"
	"path/filepath"
)

// Default PID record and log file live next to the executable, falling back
// to the working directory when the executable path cannot be resolved.
func defaultDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func defaultPIDFile() string { return filepath.Join(defaultDir(), "rdhost.pid") }

func defaultLogFile() string { return filepath.Join(defaultDir(), "rdhost.log") }
