package rdhost

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestSupervisorFacadeRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix sleep")
	}
	dir := t.TempDir()
	sup := NewSupervisor(SupervisorConfig{
		Command:      "sleep 30",
		PIDFile:      filepath.Join(dir, "rdhost.pid"),
		LogFile:      filepath.Join(dir, "rdhost.log"),
		GracePeriod:  500 * time.Millisecond,
		RestartDelay: 50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})

	pid, err := sup.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = sup.Stop(context.Background()) }()

	st, err := sup.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.PID != pid || st.Port != DefaultPort {
		t.Fatalf("unexpected status: %+v", st)
	}

	if err := sup.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := sup.Stop(context.Background()); err == nil {
		t.Fatal("second Stop must report not running")
	}
}

func TestServerFacade(t *testing.T) {
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, ":memory:", nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = srv.Close() }()

	if srv.Addr() == "" {
		t.Fatal("Addr must report the bound address")
	}
	if got := len(srv.Clients()); got != 0 {
		t.Fatalf("clients = %d, want 0", got)
	}
	if srv.AdminHandler("") == nil {
		t.Fatal("AdminHandler must not be nil")
	}
}

func TestNewHistorySinkSelectsByDSN(t *testing.T) {
	sink, err := NewHistorySink(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewHistorySink: %v", err)
	}
	multi := NewMultiSink(sink)
	if err := multi.Send(context.Background(), HistoryEvent{Type: "session_open", OccurredAt: time.Now()}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
