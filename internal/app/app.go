// Package app wires configuration, storage, messaging and the HTTP server
// into a runnable checkout sessions service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/recrutaedu/checkout-sessions/pkg/database"
	"github.com/recrutaedu/checkout-sessions/pkg/health"
	pkgkafka "github.com/recrutaedu/checkout-sessions/pkg/kafka"
	"github.com/recrutaedu/checkout-sessions/pkg/tracing"
	"github.com/recrutaedu/checkout-sessions/internal/config"
	"github.com/recrutaedu/checkout-sessions/internal/event"
	handler "github.com/recrutaedu/checkout-sessions/internal/handler/http"
	"github.com/recrutaedu/checkout-sessions/internal/repository"
	"github.com/recrutaedu/checkout-sessions/internal/repository/memory"
	repopostgres "github.com/recrutaedu/checkout-sessions/internal/repository/postgres"
	reporedis "github.com/recrutaedu/checkout-sessions/internal/repository/redis"
	"github.com/recrutaedu/checkout-sessions/internal/service"
	"github.com/recrutaedu/checkout-sessions/migrations"
)

// App wires together all dependencies and runs the checkout sessions service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "checkout-sessions",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	app := &App{
		cfg:            cfg,
		logger:         logger,
		tracerShutdown: tracerShutdown,
	}

	// Select the session store backend.
	repo, err := app.newRepository(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	app.producer = pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return app.producer.Ping(ctx)
	})

	// Build the dependency graph.
	eventProducer := event.NewProducer(app.producer, logger)
	sessionService := service.NewSessionService(
		repo,
		eventProducer,
		logger,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute,
		cfg.CheckoutBaseURL,
		cfg.CheckoutPath,
	)

	// HTTP router.
	sessionHandler := handler.NewSessionHandler(sessionService, logger)
	router := handler.NewRouter(sessionHandler, healthHandler, logger, handler.RouterConfig{
		Environment:        cfg.Environment,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

// newRepository builds the configured session store backend and registers
// its health check.
func (a *App) newRepository(ctx context.Context, healthHandler *health.Handler) (repository.SessionRepository, error) {
	switch a.cfg.StoreBackend {
	case "redis":
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:     a.cfg.RedisHost,
			Port:     a.cfg.RedisPort,
			Password: a.cfg.RedisPass,
			DB:       a.cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redisClient = client
		a.logger.Info("connected to Redis",
			slog.String("host", a.cfg.RedisHost),
			slog.Int("port", a.cfg.RedisPort),
		)
		healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})

		retention := time.Duration(a.cfg.SessionRetentionMinutes) * time.Minute
		return reporedis.NewSessionRepository(client, retention), nil

	case "postgres":
		pgCfg := database.PostgresConfig{
			Host:            a.cfg.PostgresHost,
			Port:            a.cfg.PostgresPort,
			User:            a.cfg.PostgresUser,
			Password:        a.cfg.PostgresPass,
			DBName:          a.cfg.PostgresDB,
			SSLMode:         a.cfg.PostgresSSL,
			MaxConns:        a.cfg.DBMaxConns,
			MinConns:        a.cfg.DBMinConns,
			MaxConnLifetime: time.Duration(a.cfg.DBMaxConnLifetimeMins) * time.Minute,
			MaxConnIdleTime: time.Duration(a.cfg.DBMaxConnIdleTimeMins) * time.Minute,
		}
		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", a.cfg.PostgresHost),
			slog.Int("port", a.cfg.PostgresPort),
			slog.String("database", a.cfg.PostgresDB),
		)

		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")

		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		return repopostgres.NewSessionRepository(pool), nil

	case "memory":
		a.logger.Warn("using in-memory session store; sessions will not survive restarts")
		return memory.NewSessionRepository(), nil

	default:
		return nil, fmt.Errorf("unknown session store backend: %s", a.cfg.StoreBackend)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Session store
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
