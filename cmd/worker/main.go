package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/mediacatalog/internal/config"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
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

	// Initialize repository and service
	videoRepo := postgres.NewVideoRepository(pgClient.Pool())
	cleanupSvc := usecase.NewCleanupService(
		videoRepo,
		storageClient,
		usecase.CleanupServiceConfig{
			MaxRetries: cfg.Worker.MaxRetries,
		},
	)

	if err := metrics.RegisterPoolStats(prometheus.DefaultRegisterer, pgClient.PoolStats); err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	metricsSrv := newMetricsServer(cfg.Worker.MetricsPort)

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight tasks
	var wg sync.WaitGroup

	errCh := make(chan error, 2)
	go func() {
		logger.Info("serving worker metrics", slog.Int("port", cfg.Worker.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	go func() {
		logger.Info("starting worker, consuming file cleanup tasks")
		err := queueClient.ConsumeCleanupTasks(ctx, func(task repository.CleanupTask) error {
			wg.Add(1)
			defer wg.Done()

			if err := cleanupSvc.ProcessTask(ctx, task); err != nil {
				logger.Error("cleanup task failed",
					slog.String("video_id", task.VideoID.String()),
					slog.String("key", task.Key),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	// Wait for in-flight tasks to complete (or timeout)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}

func newMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
