package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "server.log")
	lg, closer, err := New(Config{File: file, Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info("hello", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "hello") || !strings.Contains(string(b), "k=v") {
		t.Fatalf("log file missing record: %q", string(b))
	}
}

func TestNewStderrOnly(t *testing.T) {
	lg, closer, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if lg == nil {
		t.Fatal("nil logger")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("noop closer must not fail: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
