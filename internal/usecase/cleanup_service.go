package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

const (
	// DefaultMaxRetries is the default maximum number of attempts before a cleanup task is dropped.
	DefaultMaxRetries = 5
)

// CleanupServiceConfig holds configuration for CleanupService.
type CleanupServiceConfig struct {
	// MaxRetries is the maximum number of retry attempts before a task is dropped.
	MaxRetries int
}

// DefaultCleanupServiceConfig returns the default configuration.
func DefaultCleanupServiceConfig() CleanupServiceConfig {
	return CleanupServiceConfig{
		MaxRetries: DefaultMaxRetries,
	}
}

// CleanupService removes objects that the API failed to delete.
type CleanupService interface {
	// ProcessTask handles a cleanup task from the message queue.
	// Returns nil on success, when the object is still in use, or when the
	// task exhausted its retries. Returns error for transient failures that
	// should trigger a retry.
	ProcessTask(ctx context.Context, task repository.CleanupTask) error
}

type cleanupService struct {
	repo    repository.VideoRepository
	storage repository.ObjectStorage

	maxRetries int
}

// NewCleanupService creates a new CleanupService instance.
func NewCleanupService(
	repo repository.VideoRepository,
	storage repository.ObjectStorage,
	cfg CleanupServiceConfig,
) CleanupService {
	return &cleanupService{
		repo:       repo,
		storage:    storage,
		maxRetries: cfg.MaxRetries,
	}
}

// ProcessTask deletes the task's object unless the video row references it.
func (s *cleanupService) ProcessTask(ctx context.Context, task repository.CleanupTask) error {
	if task.RetryCount >= s.maxRetries {
		metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupDropped).Inc()
		slog.Error("dropping file cleanup task after max retries",
			"video_id", task.VideoID,
			"key", task.Key,
			"reason", task.Reason,
			"retry_count", task.RetryCount,
		)
		return nil
	}

	inUse, err := s.isReferenced(ctx, task)
	if err != nil {
		return fmt.Errorf("check file reference: %w", err)
	}
	if inUse {
		metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupSkipped).Inc()
		slog.Info("skipping cleanup of referenced file",
			"video_id", task.VideoID,
			"key", task.Key,
		)
		return nil
	}

	if err := s.storage.Delete(ctx, task.Key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupDeleted).Inc()
	slog.Info("orphaned file deleted",
		"video_id", task.VideoID,
		"key", task.Key,
		"reason", task.Reason,
	)
	return nil
}

// isReferenced reports whether a file field of the task's video still points at the key.
// A staged file of a rolled back saga is never referenced.
func (s *cleanupService) isReferenced(ctx context.Context, task repository.CleanupTask) (bool, error) {
	video, err := s.repo.GetByID(ctx, task.VideoID)
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			return false, nil
		}
		return false, err
	}

	for _, field := range model.FileFields {
		name := video.File(field)
		if name != "" && video.FileKey(name) == task.Key {
			return true, nil
		}
	}
	return false, nil
}
