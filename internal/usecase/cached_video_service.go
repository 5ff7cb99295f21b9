package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/cache"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

// CachedVideoServiceConfig holds configuration for CachedVideoService.
type CachedVideoServiceConfig struct {
	// CacheTTL is the TTL for cached video aggregates.
	CacheTTL time.Duration
}

// DefaultCachedVideoServiceConfig returns the default configuration.
func DefaultCachedVideoServiceConfig() CachedVideoServiceConfig {
	return CachedVideoServiceConfig{
		CacheTTL: 5 * time.Minute,
	}
}

// cachedVideoService wraps VideoService with caching capabilities.
// It implements the decorator pattern to add caching without modifying the original service.
//
// Only the aggregate is cached. File URLs are resolved on every read since
// they may be presigned with a shorter lifetime than the cache entry.
type cachedVideoService struct {
	delegate VideoService
	cache    cache.VideoCache
	storage  repository.ObjectStorage
	sfGroup  singleflight.Group

	cacheTTL time.Duration
}

// NewCachedVideoService creates a new CachedVideoService wrapping the provided VideoService.
func NewCachedVideoService(
	delegate VideoService,
	videoCache cache.VideoCache,
	storage repository.ObjectStorage,
	cfg CachedVideoServiceConfig,
) VideoService {
	return &cachedVideoService{
		delegate: delegate,
		cache:    videoCache,
		storage:  storage,
		cacheTTL: cfg.CacheTTL,
	}
}

// CreateVideo delegates to the underlying service.
// Nothing can be cached under a freshly generated id yet.
func (s *cachedVideoService) CreateVideo(ctx context.Context, attrs model.VideoAttributes) (*VideoOutput, error) {
	return s.delegate.CreateVideo(ctx, attrs)
}

// UpdateVideo delegates and drops the cached entry once the update committed.
func (s *cachedVideoService) UpdateVideo(ctx context.Context, videoID uuid.UUID, attrs model.VideoAttributes) (*VideoOutput, error) {
	out, err := s.delegate.UpdateVideo(ctx, videoID, attrs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, videoID, "update")
	return out, nil
}

// GetVideo retrieves a video with caching.
// Uses singleflight to prevent cache stampede on concurrent requests for the same video.
func (s *cachedVideoService) GetVideo(ctx context.Context, videoID uuid.UUID) (*VideoOutput, error) {
	key := videoID.String()
	result, err, shared := s.sfGroup.Do(key, func() (any, error) {
		return s.getVideoWithCache(ctx, videoID)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}

	return result.(*VideoOutput), nil
}

// getVideoWithCache implements the cache-aside pattern.
func (s *cachedVideoService) getVideoWithCache(ctx context.Context, videoID uuid.UUID) (*VideoOutput, error) {
	video, err := s.cache.Get(ctx, videoID)
	if err != nil {
		slog.Warn("cache get failed, falling back to database",
			"video_id", videoID,
			"error", err,
		)
	}

	if video != nil {
		urls := fileURLs(ctx, s.storage, video)
		return &VideoOutput{Video: video, FileURLs: urls}, nil
	}

	out, err := s.delegate.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, out.Video, s.cacheTTL); err != nil {
		slog.Warn("failed to cache video",
			"video_id", videoID,
			"error", err,
		)
	}

	return out, nil
}

// DeleteVideo delegates and drops the cached entry.
func (s *cachedVideoService) DeleteVideo(ctx context.Context, videoID uuid.UUID) error {
	if err := s.delegate.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	s.invalidate(ctx, videoID, "delete")
	return nil
}

// RestoreVideo invalidates before delegating so the restored state is read fresh.
func (s *cachedVideoService) RestoreVideo(ctx context.Context, videoID uuid.UUID) (*VideoOutput, error) {
	s.invalidate(ctx, videoID, "restore")
	return s.delegate.RestoreVideo(ctx, videoID)
}

// invalidate removes a video from the cache. Failures are logged only.
func (s *cachedVideoService) invalidate(ctx context.Context, videoID uuid.UUID, op string) {
	if err := s.cache.Delete(ctx, videoID); err != nil {
		slog.Warn("failed to invalidate cache",
			"video_id", videoID,
			"operation", op,
			"error", err,
		)
	}
}
