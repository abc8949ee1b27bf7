package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/laas-platform/laas/internal/catalog"
	"github.com/laas-platform/laas/internal/config"
	"github.com/laas-platform/laas/internal/engine"
	esengine "github.com/laas-platform/laas/internal/engine/elasticsearch"
	"github.com/laas-platform/laas/internal/engine/memory"
	pgengine "github.com/laas-platform/laas/internal/engine/postgres"
	"github.com/laas-platform/laas/internal/event"
	handler "github.com/laas-platform/laas/internal/handler/http"
	"github.com/laas-platform/laas/internal/service"
	"github.com/laas-platform/laas/migrations"
	"github.com/laas-platform/laas/pkg/database"
	"github.com/laas-platform/laas/pkg/health"
	"github.com/laas-platform/laas/pkg/httpclient"
	pkgkafka "github.com/laas-platform/laas/pkg/kafka"
	"github.com/laas-platform/laas/pkg/middleware"
	"github.com/laas-platform/laas/pkg/tracing"
)

const serviceName = "search-service"

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	search         *service.SearchService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Resources opened before a failure are released before it returns.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	eng, err := a.newEngine(ctx)
	if err != nil {
		return nil, err
	}
	if p, ok := eng.(engine.Pinger); ok {
		healthHandler.Register(cfg.SearchEngine, p.Ping)
	}

	opts := []service.Option{service.WithLimits(cfg.Limits())}
	if cfg.CatalogServiceURL != "" {
		breaker := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("catalog"),
			logger,
		)
		opts = append(opts, service.WithCatalog(catalog.NewClient(cfg.CatalogServiceURL, breaker, cfg.CatalogPageSize)))
	}

	// Engines that keep their own index are fed from catalog events and
	// announce reindex runs; the postgres engine reads the catalog tables.
	_, indexed := eng.(engine.Indexer)
	if indexed {
		a.producer = pkgkafka.NewProducer(cfg.KafkaBrokers, logger)
		opts = append(opts, service.WithPublisher(a.producer))
	}

	searchService := service.NewSearchService(eng, logger, opts...)
	a.search = searchService

	if indexed {
		if err := a.newConsumers(ctx, searchService, healthHandler); err != nil {
			return nil, err
		}
	}

	router := handler.NewRouter(searchService, healthHandler, handler.RouterConfig{
		CORS:          corsConfig(cfg.CORSOrigins),
		ProfilerCIDRs: cfg.ProfilerCIDRs,
		Timeout:       cfg.RequestTimeout,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// newEngine initializes the search engine selected by SEARCH_ENGINE.
func (a *App) newEngine(ctx context.Context) (engine.SearchEngine, error) {
	cfg, logger := a.cfg, a.logger

	switch cfg.SearchEngine {
	case config.EnginePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool

		if cfg.RunMigrations {
			if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryMS)*time.Millisecond, logger)

		eng := pgengine.New(pool, pgengine.WithFullText(cfg.FullText))
		logger.Info("postgres search engine initialized",
			slog.String("host", cfg.PostgresHost),
			slog.String("database", cfg.PostgresDB),
			slog.Bool("full_text", cfg.FullText),
		)
		return eng, nil

	case config.EngineElasticsearch:
		eng, err := esengine.New(ctx, esengine.Config{
			Addresses: cfg.ElasticsearchURL,
			Username:  cfg.ElasticsearchUsername,
			Password:  cfg.ElasticsearchPassword,
			Index:     cfg.ElasticsearchIndex,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		logger.Info("elasticsearch search engine initialized",
			slog.Any("addresses", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
		return eng, nil

	default:
		logger.Info("in-memory search engine initialized")
		return memory.New(), nil
	}
}

// newConsumers starts one consumer per catalog topic. Handlers are wrapped
// for idempotency so redelivered events are skipped.
func (a *App) newConsumers(ctx context.Context, searchService *service.SearchService, healthHandler *health.Handler) error {
	cfg, logger := a.cfg, a.logger

	var store pkgkafka.IdempotencyStore
	if rc, ok := cfg.Redis(); ok {
		client, err := database.NewRedisClient(ctx, rc)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		store = pkgkafka.NewRedisIdempotencyStore(client, "search:events", cfg.IdempotencyTTL)
		healthHandler.Register("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	} else {
		store = pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}

	var consumerOpts []pkgkafka.ConsumerOption
	if cfg.KafkaDLQEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		consumerOpts = append(consumerOpts, pkgkafka.WithDeadLetter(a.dlq))
	}

	eventConsumer := event.NewConsumer(searchService, logger)
	handle := pkgkafka.IdempotentHandler(store, eventConsumer.Handle, logger)

	topics := event.Topics()
	for _, topic := range topics {
		consumerCfg := pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaConsumerGroup,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}
		a.consumers = append(a.consumers, pkgkafka.NewConsumer(consumerCfg, handle, logger, consumerOpts...))
	}

	healthHandler.Register("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	logger.Info("kafka consumers initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Int("topic_count", len(topics)),
		slog.Bool("redis_idempotency", a.redis != nil),
		slog.Bool("dead_letter", a.dlq != nil),
	)
	return nil
}

func corsConfig(origins []string) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(origins) > 0 {
		c.AllowedOrigins = origins
	}
	return c
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("engine", a.cfg.SearchEngine),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component failed", slog.String("error", runErr.Error()))
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Background reindexes write to the engine, so they finish before it closes.
	if a.search != nil {
		if err := a.search.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("search service shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases consumers, producers, stores and the tracer.
func (a *App) closeResources() error {
	var errs []error

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dlq producer: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}

	a.consumers, a.producer, a.dlq, a.redis, a.pool, a.tracerShutdown = nil, nil, nil, nil, nil, nil
	return errors.Join(errs...)
}
