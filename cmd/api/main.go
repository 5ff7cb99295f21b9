package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/mediacatalog/internal/api/handler"
	"github.com/hszk-dev/mediacatalog/internal/api/middleware"
	"github.com/hszk-dev/mediacatalog/internal/config"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/cache"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/postgres"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/queue"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/storage"
	"github.com/hszk-dev/mediacatalog/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize infrastructure clients
	pgCfg := postgres.DefaultClientConfig(cfg.Database.DSN())
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgClient, err := postgres.NewClient(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	if err := metrics.RegisterPoolStats(prometheus.DefaultRegisterer, pgClient.PoolStats); err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}

	if cfg.Database.Migrate {
		if err := pgClient.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database migrations applied")
	}

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:       cfg.MinIO.Endpoint,
		PublicEndpoint: cfg.MinIO.PublicEndpoint,
		AccessKey:      cfg.MinIO.AccessKey,
		SecretKey:      cfg.MinIO.SecretKey,
		Bucket:         cfg.MinIO.Bucket,
		UseSSL:         cfg.MinIO.UseSSL,
		PublicBaseURL:  cfg.MinIO.PublicURL,
		URLExpiry:      cfg.MinIO.URLExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
	queueCfg.Queue = cfg.RabbitMQ.Queue
	queueCfg.DeadLetterQueue = cfg.RabbitMQ.DeadLetterQueue
	queueClient, err := queue.NewClient(ctx, queueCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// Wire repositories and services
	videoRepo := postgres.NewVideoRepository(pgClient.Pool())
	refRepo := postgres.NewReferenceRepository(pgClient.Pool())

	saga := usecase.NewVideoSaga(
		pgClient.TxManager(),
		storageClient,
		queueClient,
		usecase.NewFileExtractor(usecase.HashName),
		usecase.SagaConfig{
			UploadConcurrency:   cfg.Catalog.UploadConcurrency,
			CompensationTimeout: cfg.Catalog.CompensationTimeout,
		},
	)
	videoSvc := usecase.NewVideoService(videoRepo, refRepo, saga, storageClient)
	cachedSvc := usecase.NewCachedVideoService(
		videoSvc,
		cache.NewRedisVideoCache(redisClient),
		storageClient,
		usecase.CachedVideoServiceConfig{CacheTTL: cfg.Catalog.CacheTTL},
	)

	checks := map[string]handler.Pinger{
		"postgres": pgClient.Ping,
		"minio":    storageClient.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
	r := setupRouter(logger, handler.NewVideoHandler(cachedSvc, cfg.Server.MaxUploadBytes), checks)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// In-flight sagas finish or compensate before the clients close.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, videos *handler.VideoHandler, checks map[string]handler.Pinger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready(checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/videos", videos.Routes)
	})

	return r
}
