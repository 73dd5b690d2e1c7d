package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rdhost.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFull(t *testing.T) {
	path := writeTOML(t, `
listen = "127.0.0.1:4000"
admin_listen = "127.0.0.1:4001"
command_timeout = "10s"
token_ttl = "1h"

[auth]
dsn = "sqlite:///tmp/users.db"

[history]
enabled = true
sinks = ["sqlite:///tmp/history.db", "postgres://u:p@localhost/audit"]

[tls]
enabled = true
dir = "/tmp/certs"
auto_generate = true

[log]
level = "debug"
file = "/tmp/rdhost.log"
max_size_mb = 5
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Listen != "127.0.0.1:4000" || fc.AdminListen != "127.0.0.1:4001" {
		t.Fatalf("addrs: %+v", fc)
	}
	if fc.CommandTimeout != 10*time.Second || fc.TokenTTL != time.Hour {
		t.Fatalf("durations: %+v", fc)
	}
	if fc.Auth.DSN != "sqlite:///tmp/users.db" {
		t.Fatalf("auth dsn: %q", fc.Auth.DSN)
	}
	if !fc.History.Enabled || len(fc.History.Sinks) != 2 {
		t.Fatalf("history: %+v", fc.History)
	}
	if fc.TLS == nil || !fc.TLS.Enabled || !fc.TLS.AutoGenerate || fc.TLS.Dir != "/tmp/certs" {
		t.Fatalf("tls: %+v", fc.TLS)
	}
	if fc.Log == nil || fc.Log.Level != "debug" || fc.Log.MaxSizeMB != 5 {
		t.Fatalf("log: %+v", fc.Log)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeTOML(t, ``)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Listen != "0.0.0.0:3389" {
		t.Fatalf("listen default = %q", fc.Listen)
	}
	if fc.CommandTimeout != 30*time.Second {
		t.Fatalf("command_timeout default = %v", fc.CommandTimeout)
	}
	if fc.TokenTTL != 24*time.Hour {
		t.Fatalf("token_ttl default = %v", fc.TokenTTL)
	}
	if fc.Auth.DSN == "" {
		t.Fatal("auth dsn default must not be empty")
	}
	if fc.History.Enabled {
		t.Fatal("history must default to disabled")
	}
}

func TestLoadHistoryEnabledWithoutSinks(t *testing.T) {
	path := writeTOML(t, `
[history]
enabled = true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	fc := Default()
	if fc.Listen == "" || fc.Auth.DSN == "" {
		t.Fatalf("defaults incomplete: %+v", fc)
	}
}
