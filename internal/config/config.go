// Package config loads runtime configuration for the credkeep CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see (*Config).LoadJSON), selected with --config.
//  3. Command-line flags, applied by the CLI with (*Config).Override.
//
// Later sources override earlier ones. An empty value in the JSON file leaves
// the earlier value in place.
//
// # JSON schema
//
//	{
//	  "data_dir": "/home/alice/.credkeep",
//	  "backend": "bolt",
//	  "bolt_file": "credkeep.db",
//	  "postgres_dsn": "postgres://credkeep@localhost/credkeep",
//	  "keystore_name": "key.dat",
//	  "seclevel_name": "seclevel.dat",
//	  "credentials_name": "credentials.dat",
//	  "log_level": "debug"
//	}
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Config holds the CLI configuration.
type Config struct {
	DataDir         string `json:"data_dir"`
	Backend         string `json:"backend"`
	BoltFile        string `json:"bolt_file"`
	PostgresDSN     string `json:"postgres_dsn"`
	KeystoreName    string `json:"keystore_name"`
	SecLevelName    string `json:"seclevel_name"`
	CredentialsName string `json:"credentials_name"`
	LogLevel        string `json:"log_level"`
}

// DefaultDataDir returns ~/.credkeep, or .credkeep when there is no home
// directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".credkeep"
	}
	return filepath.Join(home, ".credkeep")
}

// LoadDefaults sets every field to its built-in default.
func (c *Config) LoadDefaults() {
	c.DataDir = DefaultDataDir()
	c.Backend = BackendFile
	c.BoltFile = "credkeep.db"
	c.KeystoreName = "key.dat"
	c.SecLevelName = "seclevel.dat"
	c.CredentialsName = "credentials.dat"
	c.LogLevel = "warn"
}

// LoadJSON overlays c with the non-empty values of the JSON file at path.
func (c *Config) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var jc Config
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.Override(jc)
	return nil
}

// Override copies the non-empty fields of o into c.
func (c *Config) Override(o Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.DataDir, o.DataDir)
	set(&c.Backend, o.Backend)
	set(&c.BoltFile, o.BoltFile)
	set(&c.PostgresDSN, o.PostgresDSN)
	set(&c.KeystoreName, o.KeystoreName)
	set(&c.SecLevelName, o.SecLevelName)
	set(&c.CredentialsName, o.CredentialsName)
	set(&c.LogLevel, o.LogLevel)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendBolt:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("backend %q needs postgres_dsn", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown backend %q (want %q, %q or %q)", c.Backend, BackendFile, BackendBolt, BackendPostgres)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	for _, name := range []string{c.KeystoreName, c.SecLevelName, c.CredentialsName} {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("invalid blob name %q", name)
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// BoltPath returns the bbolt database path. A relative BoltFile is taken
// relative to DataDir.
func (c *Config) BoltPath() string {
	if filepath.IsAbs(c.BoltFile) {
		return c.BoltFile
	}
	return filepath.Join(c.DataDir, c.BoltFile)
}

// Load builds a Config from defaults and, when path is not empty, the JSON
// file at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path != "" {
		if err := cfg.LoadJSON(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
