// Package server implements the remote connection host: a TCP listener
// speaking newline-delimited JSON, with token authentication, remote command
// execution, and a system-info probe. The process supervisor in
// internal/supervisor manages this server's lifetime from the outside; the
// two packages share nothing but the binary.
package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/loykin/rdhost/internal/auth"
	"github.com/loykin/rdhost/internal/history"
	"github.com/loykin/rdhost/internal/metrics"
)

// DefaultAddr is the listen address of the remote connection host.
const DefaultAddr = "0.0.0.0:3389"

// maxLineBytes bounds a single protocol message.
const maxLineBytes = 1 << 20

type Config struct {
	Addr           string
	CommandTimeout time.Duration
	TLSConfig      *tls.Config // nil serves plaintext
	Logger         *slog.Logger
}

// ClientInfo is a snapshot entry for the admin API.
type ClientInfo struct {
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Username    string    `json:"username,omitempty"`
}

// Server accepts client connections and serves the wire protocol. One
// goroutine per connection; Close tears the listener and all live
// connections down and waits for the handlers to drain.
type Server struct {
	cfg    Config
	auth   *auth.Service
	sink   history.Sink
	logger *slog.Logger

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]*ClientInfo
	closed  bool
	started time.Time

	wg sync.WaitGroup
}

func New(cfg Config, svc *auth.Service, sink history.Sink) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		auth:   svc,
		sink:   sink,
		logger: lg,
		conns:  make(map[net.Conn]*ClientInfo),
	}
}

// Start binds the listener and launches the accept loop. It returns once the
// server is listening, so callers can immediately connect (tests rely on
// this with ":0" addresses).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	if s.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}
	s.mu.Lock()
	s.ln = ln
	s.started = time.Now()
	s.mu.Unlock()
	s.logger.Info("remote connection host listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Clients returns a snapshot of live connections.
func (s *Server) Clients() []ClientInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ClientInfo, 0, len(s.conns))
	for _, ci := range s.conns {
		out = append(out, *ci)
	}
	return out
}

// StartedAt reports when the listener came up, zero before Start.
func (s *Server) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Close stops accepting, closes live connections, and waits for handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		ci := &ClientInfo{RemoteAddr: conn.RemoteAddr().String(), ConnectedAt: time.Now()}
		s.conns[conn] = ci
		s.mu.Unlock()

		metrics.ConnectionOpened()
		s.emit(history.Event{Type: history.EventSessionOpen, RemoteAddr: ci.RemoteAddr})
		s.wg.Add(1)
		go s.handleConn(conn, ci)
	}
}

func (s *Server) handleConn(conn net.Conn, ci *ClientInfo) {
	defer s.wg.Done()
	s.logger.Info("client connected", "remote", ci.RemoteAddr)
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		metrics.ConnectionClosed()
		s.emit(history.Event{Type: history.EventSessionClose, RemoteAddr: ci.RemoteAddr, Username: ci.Username})
		s.logger.Info("client disconnected", "remote", ci.RemoteAddr)
	}()

	enc := json.NewEncoder(conn)
	if err := enc.Encode(Welcome{
		Type:       "welcome",
		Message:    "Connected to Remote Host Server",
		ServerTime: time.Now().Format(time.RFC3339),
	}); err != nil {
		return
	}

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		var resp any
		if err := json.Unmarshal(line, &req); err != nil {
			resp = errorMsg("Invalid JSON format")
		} else {
			resp = s.handleRequest(ci, req)
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) handleRequest(ci *ClientInfo, req Request) any {
	switch req.Type {
	case TypeAuth:
		return s.handleAuth(ci, req)
	case TypeCommand:
		return s.handleCommand(ci, req)
	case TypeSystemInfo:
		if _, err := s.auth.Validate(req.Token); err != nil {
			return errorMsg("Invalid or expired token")
		}
		hostname, _ := os.Hostname()
		return SystemInfoResponse{
			Type:        "system_info_response",
			Hostname:    hostname,
			Platform:    runtime.GOOS,
			GoVersion:   runtime.Version(),
			CurrentTime: time.Now().Format(time.RFC3339),
		}
	default:
		return errorMsg("Unknown message type: " + req.Type)
	}
}

func (s *Server) handleAuth(ci *ClientInfo, req Request) any {
	token, err := s.auth.Login(context.Background(), req.Username, req.Password)
	if err != nil {
		metrics.AuthAttempt(false)
		s.emit(history.Event{Type: history.EventAuthFail, RemoteAddr: ci.RemoteAddr, Username: req.Username})
		s.logger.Warn("authentication failed", "remote", ci.RemoteAddr, "user", req.Username)
		return AuthResponse{Type: "auth_response", Success: false, Message: "Authentication failed"}
	}
	metrics.AuthAttempt(true)
	s.mu.Lock()
	ci.Username = req.Username
	s.mu.Unlock()
	s.emit(history.Event{Type: history.EventAuthOK, RemoteAddr: ci.RemoteAddr, Username: req.Username})
	s.logger.Info("user authenticated", "remote", ci.RemoteAddr, "user", req.Username)
	return AuthResponse{Type: "auth_response", Success: true, Token: token, Message: "Authentication successful"}
}

func (s *Server) handleCommand(ci *ClientInfo, req Request) any {
	user, err := s.auth.Validate(req.Token)
	if err != nil {
		return errorMsg("Invalid or expired token")
	}
	if req.Command == "" {
		return errorMsg("No command provided")
	}
	begin := time.Now()
	stdout, stderr, code := runCommand(context.Background(), req.Command, s.cfg.CommandTimeout)
	metrics.CommandExecuted(time.Since(begin))
	s.emit(history.Event{
		Type:       history.EventCommand,
		RemoteAddr: ci.RemoteAddr,
		Username:   user,
		Command:    req.Command,
		ExitCode:   code,
	})
	s.logger.Debug("command executed", "remote", ci.RemoteAddr, "user", user, "code", code)
	return CommandResponse{Type: "command_response", Stdout: stdout, Stderr: stderr, ReturnCode: code}
}

// emit sends an audit event, stamping the time. Sink failures are logged and
// never fail the request path.
func (s *Server) emit(e history.Event) {
	if s.sink == nil {
		return
	}
	e.OccurredAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Send(ctx, e); err != nil {
		s.logger.Warn("audit sink failed", "event", string(e.Type), "error", err)
	}
}
