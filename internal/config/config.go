package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/laas-platform/laas/internal/service"
	pkgconfig "github.com/laas-platform/laas/pkg/config"
	"github.com/laas-platform/laas/pkg/database"
)

// Search engine backends selectable with SEARCH_ENGINE.
const (
	EnginePostgres      = "postgres"
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RequestTimeout time.Duration `env:"SEARCH_REQUEST_TIMEOUT" envDefault:"30s"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	ProfilerCIDRs  []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Search engine selection (postgres, elasticsearch or memory)
	SearchEngine string `env:"SEARCH_ENGINE" envDefault:"postgres"`
	FullText     bool   `env:"SEARCH_FULL_TEXT" envDefault:"true"`

	// Query limits
	DefaultLimit        int     `env:"SEARCH_DEFAULT_LIMIT" envDefault:"20"`
	MaxLimit            int     `env:"SEARCH_MAX_LIMIT" envDefault:"100"`
	DefaultRadius       float64 `env:"SEARCH_DEFAULT_RADIUS" envDefault:"25"`
	DefaultSuggestLimit int     `env:"SEARCH_DEFAULT_SUGGEST_LIMIT" envDefault:"10"`
	MaxSuggestLimit     int     `env:"SEARCH_MAX_SUGGEST_LIMIT" envDefault:"50"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"laas"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"laas"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"laas"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBStatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"5s"`
	RunMigrations      bool          `env:"RUN_MIGRATIONS" envDefault:"false"`
	SlowQueryMS        int           `env:"LOG_SLOW_QUERY_MS" envDefault:"0"`

	// Elasticsearch
	ElasticsearchURL      []string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchIndex    string   `env:"ELASTICSEARCH_INDEX" envDefault:"laas_listings"`
	ElasticsearchUsername string   `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string   `env:"ELASTICSEARCH_PASSWORD"`

	// Kafka. Consumers run only for engines that keep their own index.
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"search-service"`
	KafkaDLQEnabled    bool          `env:"KAFKA_DLQ_ENABLED" envDefault:"true"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Redis backs the event idempotency store. Empty host falls back to memory.
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Catalog service URL for reindex fetching. Empty disables reindex.
	CatalogServiceURL string `env:"CATALOG_SERVICE_URL"`
	CatalogPageSize   int    `env:"CATALOG_PAGE_SIZE" envDefault:"100"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if !slices.Contains([]string{EnginePostgres, EngineElasticsearch, EngineMemory}, c.SearchEngine) {
		errs = append(errs, fmt.Errorf("SEARCH_ENGINE must be one of postgres, elasticsearch, memory; got %q", c.SearchEngine))
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		errs = append(errs, fmt.Errorf("SEARCH_DEFAULT_LIMIT must be between 1 and SEARCH_MAX_LIMIT (%d), got %d", c.MaxLimit, c.DefaultLimit))
	}
	if c.DefaultSuggestLimit < 1 || c.DefaultSuggestLimit > c.MaxSuggestLimit {
		errs = append(errs, fmt.Errorf("SEARCH_DEFAULT_SUGGEST_LIMIT must be between 1 and SEARCH_MAX_SUGGEST_LIMIT (%d), got %d", c.MaxSuggestLimit, c.DefaultSuggestLimit))
	}
	if !(c.DefaultRadius > 0) {
		errs = append(errs, fmt.Errorf("SEARCH_DEFAULT_RADIUS must be positive, got %v", c.DefaultRadius))
	}
	if c.SearchEngine == EnginePostgres && (c.PostgresPort < 1 || c.PostgresPort > 65535) {
		errs = append(errs, fmt.Errorf("invalid postgres port: %d", c.PostgresPort))
	}
	if c.SearchEngine != EnginePostgres && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate))
	}
	return errors.Join(errs...)
}

// Postgres returns the pool settings for the postgres engine.
func (c *Config) Postgres() *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	pg.MaxConnLifetime = c.DBMaxConnLifetime
	pg.MaxConnIdleTime = c.DBMaxConnIdleTime
	pg.StatementTimeout = c.DBStatementTimeout
	return &pg
}

// Redis returns the idempotency store connection, or false when REDIS_HOST
// is unset.
func (c *Config) Redis() (database.RedisConfig, bool) {
	if c.RedisHost == "" {
		return database.RedisConfig{}, false
	}
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}, true
}

func (c *Config) Limits() service.Limits {
	return service.Limits{
		DefaultLimit:        c.DefaultLimit,
		MaxLimit:            c.MaxLimit,
		DefaultRadius:       c.DefaultRadius,
		DefaultSuggestLimit: c.DefaultSuggestLimit,
		MaxSuggestLimit:     c.MaxSuggestLimit,
	}
}
