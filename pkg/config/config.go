// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates process-level configuration: store
// connection settings, pool bounds, and the report output root. Validation
// happens once at startup; the pipeline components trust the result.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

// Validation patterns for identifier-like fields to prevent injection in
// connection strings.
var (
	databasePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	userPattern     = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// Config holds the full process configuration.
type Config struct {
	// Store connection.
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	// Connection pool bounds. The pool is small and fixed; requests block
	// waiting for a slot rather than opening ad hoc connections.
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`

	// QueryTimeout bounds a single statement execution. Zero disables it.
	QueryTimeout time.Duration `mapstructure:"query_timeout"`

	// OutputRoot is the only directory tree reports may be written under.
	OutputRoot string `mapstructure:"output_root"`

	// KeepParts retains intermediate part files after a successful merge
	// (audit mode). Default is delete-on-success.
	KeepParts bool `mapstructure:"keep_parts"`
}

// GetSpoolDataDir returns the spool data directory.
//
// Priority:
//  1. SPOOL_DATA_DIR environment variable (if set and non-empty)
//  2. ~/.spool (default)
//
// Read directly from os.Getenv, not viper, because it is needed before the
// config file itself is located.
func GetSpoolDataDir() string {
	if dataDir := os.Getenv("SPOOL_DATA_DIR"); dataDir != "" {
		if abs, err := filepath.Abs(dataDir); err == nil {
			return abs
		}
		return dataDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".spool"
	}
	return filepath.Join(homeDir, ".spool")
}

// Load reads configuration from the optional YAML file at path and from
// SPOOL_* environment variables (env wins). The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPOOL")
	v.AutomaticEnv()

	v.SetDefault("port", 5432)
	v.SetDefault("sslmode", "prefer")
	v.SetDefault("max_conns", 4)
	v.SetDefault("min_conns", 0)
	v.SetDefault("query_timeout", 0)
	v.SetDefault("output_root", filepath.Join(GetSpoolDataDir(), "reports"))
	v.SetDefault("keep_parts", false)

	// Bind explicitly so env vars resolve without a config file present.
	for _, key := range []string{
		"host", "port", "database", "user", "password", "sslmode",
		"max_conns", "min_conns", "query_timeout", "output_root", "keep_parts",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and formats. Called once at startup.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if !databasePattern.MatchString(c.Database) {
		return fmt.Errorf("database contains invalid characters (allowed: alphanumeric, underscores, and hyphens)")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if !userPattern.MatchString(c.User) {
		return fmt.Errorf("user contains invalid characters (allowed: alphanumeric, dots, underscores, and hyphens)")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be positive")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns must be between 0 and max_conns")
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("output_root is required")
	}
	return nil
}

// ConnString builds the Postgres connection URL. The password is URL-encoded
// to handle special characters.
func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}
