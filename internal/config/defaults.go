package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 12345
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = "/usr/local/var/elastipass/dist"
	}
	if cfg.Server.TLSCert == "" {
		cfg.Server.TLSCert = "/usr/local/var/elastipass/ssl/elastipass_cert.pem"
	}
	if cfg.Server.TLSKey == "" {
		cfg.Server.TLSKey = "/usr/local/var/elastipass/ssl/elastipass_key.pem"
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = int(cfg.Server.RateLimit.RequestsPerSecond * 2)
		if cfg.Server.RateLimit.Burst < 1 {
			cfg.Server.RateLimit.Burst = 1
		}
	}
	if cfg.Engine.Backend == "" {
		cfg.Engine.Backend = BackendElasticsearch
	}
	if len(cfg.Engine.Addresses) == 0 {
		cfg.Engine.Addresses = []string{"http://elasticsearch:9200"}
	}
	if cfg.Engine.TimeoutSec == 0 {
		cfg.Engine.TimeoutSec = 240
	}
	if cfg.Engine.BleveIndexPath == "" {
		cfg.Engine.BleveIndexPath = "/usr/local/var/elastipass/data/indices/accounts"
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = "pwd_*"
	}
	if cfg.Search.DocType == "" {
		cfg.Search.DocType = "account"
	}
	if cfg.Search.Workers == 0 {
		cfg.Search.Workers = 8
	}
	if cfg.Search.Backlog == 0 {
		cfg.Search.Backlog = 256
	}
	if cfg.Audit.Sink == "" {
		cfg.Audit.Sink = SinkEngine
	}
	if cfg.Audit.Index == "" {
		cfg.Audit.Index = "pwdlogs"
	}
	if cfg.Audit.DatabasePath == "" {
		cfg.Audit.DatabasePath = "/usr/local/var/elastipass/data/db/audit.db"
	}
	if cfg.Audit.RedisStream == "" {
		cfg.Audit.RedisStream = "elastipass:searches"
	}
	if cfg.Audit.RedisMaxLen == 0 {
		cfg.Audit.RedisMaxLen = 100000
	}
	if cfg.Audit.KafkaTopic == "" {
		cfg.Audit.KafkaTopic = "elastipass.searches"
	}
	if cfg.Audit.TimeoutSec == 0 {
		cfg.Audit.TimeoutSec = 10
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".json", ".jsonl", ".ndjson"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

// EngineTimeout returns the engine request timeout.
func (c *EngineConfig) EngineTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// WriteTimeout returns the per-record audit write timeout.
func (c *AuditConfig) WriteTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}
