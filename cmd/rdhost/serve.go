package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/rdhost/internal/auth"
	"github.com/loykin/rdhost/internal/config"
	"github.com/loykin/rdhost/internal/history"
	"github.com/loykin/rdhost/internal/history/factory"
	"github.com/loykin/rdhost/internal/httpapi"
	"github.com/loykin/rdhost/internal/logger"
	"github.com/loykin/rdhost/internal/metrics"
	"github.com/loykin/rdhost/internal/server"
	itls "github.com/loykin/rdhost/internal/tls"
)

type serveFlags struct {
	ConfigPath string
	Listen     string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the remote connection host in the foreground",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func runServe(f *serveFlags) error {
	fc := config.Default()
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		fc = loaded
	}
	if f.Listen != "" {
		fc.Listen = f.Listen
	}

	logCfg := logger.Config{}
	if fc.Log != nil {
		logCfg = *fc.Log
	}
	lg, logCloser, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	store, err := auth.OpenStore(fc.Auth.DSN)
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer func() { _ = store.Close() }()
	sessions := auth.NewService(store, fc.TokenTTL)

	var sink history.Sink
	if fc.History.Enabled {
		sinks := make(history.Multi, 0, len(fc.History.Sinks))
		for _, dsn := range fc.History.Sinks {
			s, err := factory.NewSinkFromDSN(dsn)
			if err != nil {
				return fmt.Errorf("history sink %q: %w", dsn, err)
			}
			if c, ok := s.(io.Closer); ok {
				defer func() { _ = c.Close() }()
			}
			sinks = append(sinks, s)
		}
		sink = sinks
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var tlsCfg *tls.Config
	if fc.TLS != nil {
		tlsCfg, err = itls.Setup(*fc.TLS)
		if err != nil {
			return fmt.Errorf("setup tls: %w", err)
		}
	}

	srv := server.New(server.Config{
		Addr:           fc.Listen,
		CommandTimeout: fc.CommandTimeout,
		TLSConfig:      tlsCfg,
		Logger:         lg,
	}, sessions, sink)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("listen %s: %w", fc.Listen, err)
	}

	var admin *http.Server
	if fc.AdminListen != "" {
		admin = httpapi.NewServer(fc.AdminListen, "", srv, sessions)
		lg.Info("admin api listening", "addr", fc.AdminListen)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	lg.Info("shutting down", "signal", sig.String())

	if admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = admin.Shutdown(ctx)
		cancel()
	}
	return srv.Close()
}
