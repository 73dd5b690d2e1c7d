// Package config loads the TOML configuration of the serve command.
// The lifecycle commands (start/stop/restart/status) take no configuration;
// only the server side is file-driven.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/rdhost/internal/logger"
	"github.com/loykin/rdhost/internal/server"
	itls "github.com/loykin/rdhost/internal/tls"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Listen         string         `toml:"listen" mapstructure:"listen"`
	AdminListen    string         `toml:"admin_listen" mapstructure:"admin_listen"`
	CommandTimeout time.Duration  `toml:"command_timeout" mapstructure:"command_timeout"`
	TokenTTL       time.Duration  `toml:"token_ttl" mapstructure:"token_ttl"`
	Auth           AuthConfig     `toml:"auth" mapstructure:"auth"`
	History        HistoryConfig  `toml:"history" mapstructure:"history"`
	TLS            *itls.Config   `toml:"tls" mapstructure:"tls"`
	Log            *logger.Config `toml:"log" mapstructure:"log"`
}

type AuthConfig struct {
	// DSN of the user store, e.g. "sqlite:///var/lib/rdhost/users.db".
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
	// Sinks are DSNs: sqlite://, postgres://, clickhouse://, opensearch://.
	Sinks []string `toml:"sinks" mapstructure:"sinks"`
}

// Load reads and validates the TOML file at path, applying defaults.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	fc.applyDefaults()
	if err := fc.validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Default returns the configuration used when no file is given.
func Default() *FileConfig {
	fc := &FileConfig{}
	fc.applyDefaults()
	return fc
}

func (fc *FileConfig) applyDefaults() {
	if fc.Listen == "" {
		fc.Listen = server.DefaultAddr
	}
	if fc.CommandTimeout <= 0 {
		fc.CommandTimeout = server.DefaultCommandTimeout
	}
	if fc.TokenTTL <= 0 {
		fc.TokenTTL = 24 * time.Hour
	}
	if fc.Auth.DSN == "" {
		fc.Auth.DSN = "rdhost_users.db"
	}
}

func (fc *FileConfig) validate() error {
	if fc.History.Enabled && len(fc.History.Sinks) == 0 {
		return fmt.Errorf("history enabled but no sinks configured")
	}
	for _, d := range fc.History.Sinks {
		if d == "" {
			return fmt.Errorf("empty history sink DSN")
		}
	}
	return nil
}
