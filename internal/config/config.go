package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/productsearch/pkg/config"
)

// Search engine kinds.
const (
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Idempotency store kinds for the event consumer.
const (
	IdempotencyMemory = "memory"
	IdempotencyRedis  = "redis"
)

// Config holds all configuration for the product search service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"productsearch"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	PprofCIDRs      []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Search engine selection (elasticsearch or memory)
	SearchEngine string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`

	// Elasticsearch
	ElasticsearchURL      string        `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex    string        `env:"ELASTICSEARCH_INDEX" envDefault:"products"`
	ElasticsearchUsername string        `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string        `env:"ELASTICSEARCH_PASSWORD"`
	ConnectTimeout        time.Duration `env:"ELASTICSEARCH_CONNECT_TIMEOUT" envDefault:"5s"`
	SocketTimeout         time.Duration `env:"ELASTICSEARCH_SOCKET_TIMEOUT" envDefault:"30s"`
	MaxConnsPerHost       int           `env:"ELASTICSEARCH_MAX_CONNS_PER_HOST" envDefault:"100"`

	// Circuit breaker on the Elasticsearch transport
	BreakerEnabled      bool          `env:"ELASTICSEARCH_BREAKER_ENABLED" envDefault:"false"`
	BreakerTimeout      time.Duration `env:"ELASTICSEARCH_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFailureRatio float64       `env:"ELASTICSEARCH_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"ELASTICSEARCH_BREAKER_MIN_REQUESTS" envDefault:"10"`

	// Facade
	AggregationMaxBuckets int `env:"AGGREGATION_MAX_BUCKETS" envDefault:"1000"`

	// Tracing
	TracingEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint      string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Kafka product event ingestion
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID       string        `env:"KAFKA_GROUP_ID" envDefault:"productsearch"`
	KafkaMaxRetries    int           `env:"KAFKA_MAX_RETRIES" envDefault:"3"`
	KafkaRetryBackoff  time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"100ms"`
	KafkaDLQEnabled    bool          `env:"KAFKA_DLQ_ENABLED" envDefault:"true"`
	IdempotencyStore   string        `env:"KAFKA_IDEMPOTENCY_STORE" envDefault:"memory"`
	IdempotencyTTL     time.Duration `env:"KAFKA_IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencyPrefix  string        `env:"KAFKA_IDEMPOTENCY_PREFIX" envDefault:"productsearch:events:"`

	// Redis, used by the redis idempotency store
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load productsearch config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load productsearch config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}

	c.SearchEngine = strings.ToLower(strings.TrimSpace(c.SearchEngine))
	switch c.SearchEngine {
	case EngineElasticsearch:
		if c.ElasticsearchURL == "" {
			return fmt.Errorf("ELASTICSEARCH_URL is required when SEARCH_ENGINE=%s", EngineElasticsearch)
		}
		if c.ElasticsearchIndex == "" {
			return fmt.Errorf("ELASTICSEARCH_INDEX is required when SEARCH_ENGINE=%s", EngineElasticsearch)
		}
	case EngineMemory:
	default:
		return fmt.Errorf("invalid SEARCH_ENGINE %q: must be %s or %s", c.SearchEngine, EngineElasticsearch, EngineMemory)
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("ELASTICSEARCH_CONNECT_TIMEOUT must be positive, got %s", c.ConnectTimeout)
	}
	if c.SocketTimeout <= 0 {
		return fmt.Errorf("ELASTICSEARCH_SOCKET_TIMEOUT must be positive, got %s", c.SocketTimeout)
	}
	if c.MaxConnsPerHost < 1 {
		return fmt.Errorf("ELASTICSEARCH_MAX_CONNS_PER_HOST must be at least 1, got %d", c.MaxConnsPerHost)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("ELASTICSEARCH_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	if c.AggregationMaxBuckets < 1 {
		return fmt.Errorf("AGGREGATION_MAX_BUCKETS must be at least 1, got %d", c.AggregationMaxBuckets)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.TracingSampleRate)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
		}
		if c.KafkaGroupID == "" {
			return fmt.Errorf("KAFKA_GROUP_ID is required when KAFKA_ENABLED is set")
		}
		switch c.IdempotencyStore {
		case IdempotencyMemory:
		case IdempotencyRedis:
			if c.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is required when KAFKA_IDEMPOTENCY_STORE=%s", IdempotencyRedis)
			}
		default:
			return fmt.Errorf("invalid KAFKA_IDEMPOTENCY_STORE %q: must be %s or %s", c.IdempotencyStore, IdempotencyMemory, IdempotencyRedis)
		}
	}
	return nil
}
