package config

import (
	"errors"
	"fmt"
)

// Backend and sink names accepted in configuration. Sink names match the audit sinks' Name().
const (
	BackendElasticsearch = "elasticsearch"
	BackendBleve         = "bleve"

	SinkEngine = "engine"
	SinkSQLite = "sqlite"
	SinkRedis  = "redis"
	SinkKafka  = "kafka"
	SinkNone   = "none"
)

// Validate reports every invalid or incompatible setting in one error.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("server.rate_limit.requests_per_second must not be negative"))
	}
	switch c.Engine.Backend {
	case BackendElasticsearch:
		if len(c.Engine.Addresses) == 0 {
			errs = append(errs, errors.New("engine.addresses is required for the elasticsearch backend"))
		}
	case BackendBleve:
		if c.Engine.BleveIndexPath == "" {
			errs = append(errs, errors.New("engine.bleve_index_path is required for the bleve backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown engine.backend %q", c.Engine.Backend))
	}
	if c.Search.Workers < 1 {
		errs = append(errs, fmt.Errorf("search.workers must be positive, got %d", c.Search.Workers))
	}
	if c.Search.Backlog < 1 {
		errs = append(errs, fmt.Errorf("search.backlog must be positive, got %d", c.Search.Backlog))
	}
	switch c.Audit.Sink {
	case SinkEngine:
		if c.Engine.Backend != BackendElasticsearch {
			errs = append(errs, errors.New("audit.sink engine requires the elasticsearch backend"))
		}
	case SinkSQLite:
		if c.Audit.DatabasePath == "" {
			errs = append(errs, errors.New("audit.database_path is required for the sqlite sink"))
		}
	case SinkRedis:
		if c.Audit.RedisURL == "" {
			errs = append(errs, errors.New("audit.redis_url is required for the redis sink"))
		}
	case SinkKafka:
		if len(c.Audit.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("audit.kafka_brokers is required for the kafka sink"))
		}
	case SinkNone:
	default:
		errs = append(errs, fmt.Errorf("unknown audit.sink %q", c.Audit.Sink))
	}
	return errors.Join(errs...)
}
