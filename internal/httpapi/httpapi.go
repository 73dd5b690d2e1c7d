// Package httpapi exposes an embeddable admin surface for the remote
// connection host: health, a status snapshot, and prometheus metrics.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/rdhost/internal/auth"
	"github.com/loykin/rdhost/internal/metrics"
	"github.com/loykin/rdhost/internal/server"
)

// Router provides embeddable HTTP handlers for observing the host.
// Endpoints:
//
//	GET {basePath}/healthz
//	GET {basePath}/status
//	GET {basePath}/clients
//	GET {basePath}/metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	srv      *server.Server
	sessions *auth.Service
	basePath string
}

func NewRouter(srv *server.Server, sessions *auth.Service, basePath string) *Router {
	return &Router{srv: srv, sessions: sessions, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/status", r.handleStatus)
	group.GET("/clients", r.handleClients)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone admin HTTP server on addr using this router.
// Call Close on the returned server to stop it.
func NewServer(addr, basePath string, srv *server.Server, sessions *auth.Service) *http.Server {
	r := NewRouter(srv, sessions, basePath)
	hs := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = hs.ListenAndServe() }()
	return hs
}

type statusResp struct {
	ListenAddr     string    `json:"listen_addr"`
	StartedAt      time.Time `json:"started_at"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	Clients        int       `json:"clients"`
	ActiveSessions int       `json:"active_sessions"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStatus(c *gin.Context) {
	addr := ""
	if a := r.srv.Addr(); a != nil {
		addr = a.String()
	}
	started := r.srv.StartedAt()
	uptime := 0.0
	if !started.IsZero() {
		uptime = time.Since(started).Seconds()
	}
	c.JSON(http.StatusOK, statusResp{
		ListenAddr:     addr,
		StartedAt:      started,
		UptimeSeconds:  uptime,
		Clients:        len(r.srv.Clients()),
		ActiveSessions: r.sessions.ActiveSessions(),
	})
}

func (r *Router) handleClients(c *gin.Context) {
	c.JSON(http.StatusOK, r.srv.Clients())
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
