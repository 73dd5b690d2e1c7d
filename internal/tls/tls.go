// Package tls builds the crypto/tls server configuration for the remote
// connection host, optionally generating a self-signed certificate when none
// is provided.
package tls

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the [tls] section of the serve configuration.
type Config struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	CertFile string `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `toml:"key_file" mapstructure:"key_file"`
	// Dir is where auto-generated certificates are written when no cert/key
	// pair is configured.
	Dir          string `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool   `toml:"auto_generate" mapstructure:"auto_generate"`
	MinVersion   string `toml:"min_version" mapstructure:"min_version"`
}

// Setup returns the server TLS configuration, or nil when disabled.
// With AutoGenerate set and no existing pair, a self-signed certificate for
// localhost is written under Dir.
func Setup(cfg Config) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	certPath, keyPath := cfg.CertFile, cfg.KeyFile
	if certPath == "" || keyPath == "" {
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		certPath = filepath.Join(dir, "server.crt")
		keyPath = filepath.Join(dir, "server.key")
		if !certificatesExist(certPath, keyPath) {
			if !cfg.AutoGenerate {
				return nil, fmt.Errorf("tls enabled but no certificate at %s", certPath)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
			err := GenerateSelfSignedCert(CertConfig{
				CommonName:   "localhost",
				Organization: "rdhost",
				DNSNames:     []string{"localhost"},
				IPAddresses:  []string{"127.0.0.1", "::1"},
				NotAfter:     time.Now().AddDate(1, 0, 0),
				CertPath:     certPath,
				KeyPath:      keyPath,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	minVer, err := parseTLSVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		// Reload the pair on every handshake so rotated certificates are
		// picked up without a restart.
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			cert, err := tls.LoadX509KeyPair(certPath, keyPath)
			if err != nil {
				return nil, err
			}
			return &cert, nil
		},
		MinVersion: minVer,
	}, nil
}

func parseTLSVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported tls min_version %q", v)
	}
}

func certificatesExist(certPath, keyPath string) bool {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}
