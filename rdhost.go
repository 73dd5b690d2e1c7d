// Package rdhost exposes a stable embedding API over the internal packages:
// the single-instance process supervisor, the remote connection host, and
// its audit/metrics plumbing.
package rdhost

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/rdhost/internal/auth"
	"github.com/loykin/rdhost/internal/config"
	"github.com/loykin/rdhost/internal/history"
	"github.com/loykin/rdhost/internal/history/factory"
	"github.com/loykin/rdhost/internal/httpapi"
	"github.com/loykin/rdhost/internal/metrics"
	iserver "github.com/loykin/rdhost/internal/server"
	"github.com/loykin/rdhost/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type SupervisorConfig = supervisor.Config

type Status = supervisor.Status

type ServerConfig = iserver.Config

type ClientInfo = iserver.ClientInfo

type FileConfig = config.FileConfig

type HistoryEvent = history.Event

type HistorySink = history.Sink

var (
	ErrAlreadyRunning = supervisor.ErrAlreadyRunning
	ErrNotRunning     = supervisor.ErrNotRunning
)

// Supervisor is a thin facade over internal/supervisor.
type Supervisor struct{ inner *supervisor.Supervisor }

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	return &Supervisor{inner: supervisor.New(cfg)}
}

func (s *Supervisor) Start() (int, error)                      { return s.inner.Start() }
func (s *Supervisor) Stop(ctx context.Context) error           { return s.inner.Stop(ctx) }
func (s *Supervisor) Restart(ctx context.Context) (int, error) { return s.inner.Restart(ctx) }
func (s *Supervisor) Status() (Status, error)                  { return s.inner.Status() }

// Server is a thin facade over the remote connection host.
type Server struct {
	inner    *iserver.Server
	sessions *auth.Service
	store    *auth.Store
}

// NewServer opens the user store at userDSN and constructs a host with the
// given audit sink (nil disables auditing).
func NewServer(cfg ServerConfig, userDSN string, sink HistorySink) (*Server, error) {
	store, err := auth.OpenStore(userDSN)
	if err != nil {
		return nil, err
	}
	sessions := auth.NewService(store, auth.DefaultTokenTTL)
	return &Server{
		inner:    iserver.New(cfg, sessions, sink),
		sessions: sessions,
		store:    store,
	}, nil
}

func (s *Server) Start() error { return s.inner.Start() }

func (s *Server) Close() error {
	err := s.inner.Close()
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) Addr() string {
	if a := s.inner.Addr(); a != nil {
		return a.String()
	}
	return ""
}

func (s *Server) Clients() []ClientInfo { return s.inner.Clients() }

// AdminHandler returns the embeddable admin HTTP surface for this server.
func (s *Server) AdminHandler(basePath string) http.Handler {
	return httpapi.NewRouter(s.inner, s.sessions, basePath).Handler()
}

// NewHistorySink builds an audit sink from a DSN (sqlite, postgres,
// clickhouse).
func NewHistorySink(dsn string) (HistorySink, error) {
	return factory.NewSinkFromDSN(dsn)
}

// NewMultiSink fans audit events out to several sinks.
func NewMultiSink(sinks ...HistorySink) HistorySink { return history.Multi(sinks) }

// LoadConfig reads the serve configuration from a TOML file.
func LoadConfig(path string) (*FileConfig, error) { return config.Load(path) }

// RegisterMetrics registers the host's Prometheus collectors.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler { return metrics.Handler() }

// DefaultGracePeriod and friends mirror the supervisor defaults.
const (
	DefaultGracePeriod  = supervisor.DefaultGracePeriod
	DefaultRestartDelay = supervisor.DefaultRestartDelay
	DefaultPort         = supervisor.DefaultPort
	DefaultAddr         = iserver.DefaultAddr
)
