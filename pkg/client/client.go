// Package client provides a programmatic client for the remote connection
// host protocol: newline-delimited JSON over TCP.
package client

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Config holds client configuration.
type Config struct {
	Addr        string
	DialTimeout time.Duration
	ReadTimeout time.Duration // per response; zero means no deadline
	TLS         *tls.Config   // nil dials plaintext
	Logger      *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:3389",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 60 * time.Second,
	}
}

// ErrNotAuthenticated is returned when a call requiring a token is made
// before a successful Authenticate.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// Client is a single protocol session. Calls are serialized; the protocol
// is strictly request/response per connection.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	conn  net.Conn
	r     *bufio.Reader
	token string
}

// Dial connects to the host and consumes the welcome message.
func Dial(cfg Config) (*Client, *Welcome, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	var conn net.Conn
	var err error
	if cfg.TLS != nil {
		d := &net.Dialer{Timeout: cfg.DialTimeout}
		conn, err = tls.DialWithDialer(d, "tcp", cfg.Addr, cfg.TLS)
	} else {
		conn, err = net.DialTimeout("tcp", cfg.Addr, cfg.DialTimeout)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	c := &Client{cfg: cfg, logger: cfg.Logger, conn: conn, r: bufio.NewReader(conn)}
	var w Welcome
	if err := c.read(&w); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("read welcome: %w", err)
	}
	return c, &w, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Token returns the session token, empty before Authenticate.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Authenticate logs in and stores the session token for subsequent calls.
func (c *Client) Authenticate(username, password string) (*AuthResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp AuthResponse
	err := c.roundTrip(request{Type: "auth", Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Success {
		c.token = resp.Token
	}
	return &resp, nil
}

// Run executes a command on the host and returns its output.
func (c *Client) Run(command string) (*CommandResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}
	var resp CommandResponse
	if err := c.roundTrip(request{Type: "command", Token: c.token, Command: command}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SystemInfo fetches the host's system information.
func (c *Client) SystemInfo() (*SystemInfoResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}
	var resp SystemInfoResponse
	if err := c.roundTrip(request{Type: "system_info", Token: c.token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// roundTrip sends one request and decodes one response. Error messages from
// the host are surfaced as Go errors. Callers hold c.mu.
func (c *Client) roundTrip(req request, out any) error {
	if c.conn == nil {
		return errors.New("client: closed")
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	line, err := c.readLine()
	if err != nil {
		return fmt.Errorf("recv: %w", err)
	}
	var probe struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if probe.Type == "error" {
		return &ServerError{Message: probe.Message}
	}
	return json.Unmarshal(line, out)
}

func (c *Client) read(out any) error {
	line, err := c.readLine()
	if err != nil {
		return err
	}
	return json.Unmarshal(line, out)
}

func (c *Client) readLine() ([]byte, error) {
	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	return c.r.ReadBytes('\n')
}
