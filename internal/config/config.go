// Package config provides configuration loading and structs for the elastipass server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ELASTIPASS_ENGINE_ADDRESSES.
const EnvPrefix = "ELASTIPASS"

// Config holds all configuration for the application.
type Config struct {
	Debug  bool         `yaml:"debug"`
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Search SearchConfig `yaml:"search"`
	Audit  AuditConfig  `yaml:"audit"`
	Watch  WatchConfig  `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	StaticDir string          `yaml:"static_dir" split_words:"true"`
	TLSCert   string          `yaml:"tls_cert" split_words:"true"`
	TLSKey    string          `yaml:"tls_key" split_words:"true"`
	RateLimit RateLimitConfig `yaml:"rate_limit" split_words:"true"`
}

// RateLimitConfig holds per-client request limits. Zero requests per second disables limiting.
// TrustForwarded keys clients by X-Forwarded-For / X-Real-IP; enable it only behind a proxy
// that sets those headers.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true"`
	Burst             int     `yaml:"burst"`
	TrustForwarded    bool    `yaml:"trust_forwarded" split_words:"true"`
}

// EngineConfig selects and connects the search backend.
type EngineConfig struct {
	Backend        string   `yaml:"backend"`
	Addresses      []string `yaml:"addresses"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	TimeoutSec     int      `yaml:"timeout_sec" split_words:"true"`
	BleveIndexPath string   `yaml:"bleve_index_path" split_words:"true"`
}

// SearchConfig holds request defaults and pool sizes.
type SearchConfig struct {
	Index   string `yaml:"index"`
	DocType string `yaml:"doc_type" split_words:"true"`
	Workers int    `yaml:"workers"`
	Backlog int    `yaml:"backlog"`
}

// AuditConfig selects where completed searches are recorded.
type AuditConfig struct {
	Sink         string   `yaml:"sink"`
	Index        string   `yaml:"index"`
	DatabasePath string   `yaml:"database_path" split_words:"true"`
	RedisURL     string   `yaml:"redis_url" split_words:"true"`
	RedisStream  string   `yaml:"redis_stream" split_words:"true"`
	RedisMaxLen  int64    `yaml:"redis_max_len" split_words:"true"`
	KafkaBrokers []string `yaml:"kafka_brokers" split_words:"true"`
	KafkaTopic   string   `yaml:"kafka_topic" split_words:"true"`
	TimeoutSec   int      `yaml:"timeout_sec" split_words:"true"`
}

// WatchConfig holds account dump directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive" ignored:"true"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, expands paths, and
// applies environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Server.StaticDir = expandPath(cfg.Server.StaticDir, configDir)
	cfg.Server.TLSCert = expandPath(cfg.Server.TLSCert, configDir)
	cfg.Server.TLSKey = expandPath(cfg.Server.TLSKey, configDir)
	cfg.Engine.BleveIndexPath = expandPath(cfg.Engine.BleveIndexPath, configDir)
	cfg.Audit.DatabasePath = expandPath(cfg.Audit.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and environment overrides on top.
func Default() (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with ELASTIPASS_* environment variables. Unset variables leave
// the current value in place.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("processing env config: %w", err)
	}
	return nil
}

// SaveWatchDirectories replaces watch.directories in the config file at path, creating
// the file if needed. Every other setting is kept as written in the file, so defaults and
// environment overrides are never persisted.
func SaveWatchDirectories(path string, dirs []string) error {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to read config: %w", err)
	}
	cfg.Watch.Directories = dirs

	data, err = yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
