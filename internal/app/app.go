package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/productsearch/internal/config"
	"github.com/utafrali/productsearch/internal/engine"
	esengine "github.com/utafrali/productsearch/internal/engine/elasticsearch"
	"github.com/utafrali/productsearch/internal/engine/memory"
	"github.com/utafrali/productsearch/internal/event"
	handler "github.com/utafrali/productsearch/internal/handler/http"
	"github.com/utafrali/productsearch/internal/service"
	"github.com/utafrali/productsearch/pkg/database"
	"github.com/utafrali/productsearch/pkg/health"
	"github.com/utafrali/productsearch/pkg/httpclient"
	pkgkafka "github.com/utafrali/productsearch/pkg/kafka"
	"github.com/utafrali/productsearch/pkg/middleware"
	"github.com/utafrali/productsearch/pkg/tracing"
)

// App wires together all dependencies and runs the product search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	engine         engine.SearchEngine
	consumer       *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	redis          *redis.Client
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewEngine builds the search engine selected by cfg. The Elasticsearch
// engine creates its index when missing.
func NewEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.SearchEngine, error) {
	switch cfg.SearchEngine {
	case config.EngineMemory:
		logger.Info("in-memory search engine initialized")
		return memory.New(), nil
	default:
		esCfg := esengine.Config{
			URL:      cfg.ElasticsearchURL,
			Index:    cfg.ElasticsearchIndex,
			Username: cfg.ElasticsearchUsername,
			Password: cfg.ElasticsearchPassword,
			HTTP: httpclient.Config{
				ConnectTimeout:  cfg.ConnectTimeout,
				SocketTimeout:   cfg.SocketTimeout,
				MaxConnsPerHost: cfg.MaxConnsPerHost,
			},
		}
		if cfg.BreakerEnabled {
			breaker := httpclient.DefaultCircuitBreakerConfig("elasticsearch")
			breaker.Timeout = cfg.BreakerTimeout
			breaker.FailureRatio = cfg.BreakerFailureRatio
			breaker.MinRequests = cfg.BreakerMinRequests
			esCfg.Breaker = &breaker
		}

		eng, err := esengine.New(ctx, esCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		logger.Info("elasticsearch search engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
			slog.Bool("circuit_breaker", cfg.BreakerEnabled),
		)
		return eng, nil
	}
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tcfg := tracing.DefaultConfig(cfg.ServiceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.TracingEnabled
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.SampleRate = cfg.TracingSampleRate
	tracerShutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	eng, err := NewEngine(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(ctx)
		return nil, err
	}
	a.engine = eng

	// Build the service layer.
	productService := service.NewProductService(eng, logger, service.WithMaxBuckets(cfg.AggregationMaxBuckets))

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("search_engine", eng.Ping)

	if cfg.KafkaEnabled {
		if err := a.initConsumer(ctx, productService, healthHandler); err != nil {
			_ = a.close()
			return nil, err
		}
	}

	// HTTP router.
	routerCfg := handler.DefaultRouterConfig()
	routerCfg.ServiceName = cfg.ServiceName
	routerCfg.RequestTimeout = cfg.RequestTimeout
	routerCfg.PprofCIDRs = cfg.PprofCIDRs
	if len(cfg.CORSOrigins) > 0 {
		routerCfg.CORS = middleware.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			Environment:    cfg.Environment,
		}
	}
	router := handler.NewRouter(productService, healthHandler, logger, routerCfg)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// initConsumer sets up the product event consumer with its dead letter
// producer and idempotency store.
func (a *App) initConsumer(ctx context.Context, products *service.ProductService, healthHandler *health.Handler) error {
	cfg := a.cfg

	var store pkgkafka.IdempotencyStore
	switch cfg.IdempotencyStore {
	case config.IdempotencyRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPassword
		rcfg.DB = cfg.RedisDB
		client, err := database.NewRedisClient(ctx, rcfg)
		if err != nil {
			return fmt.Errorf("init redis idempotency store: %w", err)
		}
		a.redis = client
		store = pkgkafka.NewRedisIdempotencyStore(client, cfg.IdempotencyPrefix, cfg.IdempotencyTTL)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	default:
		store = pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}

	var opts []pkgkafka.ConsumerOption
	if cfg.KafkaDLQEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, a.logger)
		opts = append(opts, pkgkafka.WithDeadLetter(a.dlq))
	}

	eventConsumer := event.NewConsumer(products, a.logger)
	a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:      cfg.KafkaBrokers,
		GroupID:      cfg.KafkaGroupID,
		Topics:       event.Topics(),
		MinBytes:     1,
		MaxBytes:     10e6, // 10 MB
		MaxRetries:   cfg.KafkaMaxRetries,
		RetryBackoff: cfg.KafkaRetryBackoff,
	}, pkgkafka.IdempotentHandler(store, eventConsumer.Handle, a.logger), a.logger, opts...)

	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	a.logger.Info("kafka consumer initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Any("topics", event.Topics()),
		slog.String("idempotency_store", cfg.IdempotencyStore),
		slog.Bool("dlq", cfg.KafkaDLQEnabled),
	)
	return nil
}

// Handler returns the HTTP handler of the application.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the Kafka consumer, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
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
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases the Kafka and Redis resources.
func (a *App) close() error {
	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
