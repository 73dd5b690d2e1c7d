package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	connectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rdhost",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Number of accepted client connections.",
		},
	)
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rdhost",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Currently open client connections.",
		},
	)
	authTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rdhost",
			Subsystem: "server",
			Name:      "auth_total",
			Help:      "Authentication attempts by result.",
		}, []string{"result"},
	)
	commandsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rdhost",
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "Number of remote commands executed.",
		},
	)
	commandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rdhost",
			Subsystem: "server",
			Name:      "command_duration_seconds",
			Help:      "Wall time of remote command execution.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{connectionsTotal, activeConnections, authTotal, commandsTotal, commandDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ConnectionOpened() {
	connectionsTotal.Inc()
	activeConnections.Inc()
}

func ConnectionClosed() { activeConnections.Dec() }

func AuthAttempt(ok bool) {
	if ok {
		authTotal.WithLabelValues("ok").Inc()
	} else {
		authTotal.WithLabelValues("fail").Inc()
	}
}

func CommandExecuted(d time.Duration) {
	commandsTotal.Inc()
	commandDuration.Observe(d.Seconds())
}
