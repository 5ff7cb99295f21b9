package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

const (
	// videoCacheKeyPrefix is the prefix for video cache keys in Redis.
	videoCacheKeyPrefix = "catalog:video:"
)

// videoJSON is the JSON representation of a Video for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type videoJSON struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	YearLaunched int         `json:"year_launched"`
	Opened       bool        `json:"opened"`
	Rating       string      `json:"rating"`
	Duration     int         `json:"duration"`
	VideoFile    string      `json:"video_file,omitempty"`
	ThumbFile    string      `json:"thumb_file,omitempty"`
	BannerFile   string      `json:"banner_file,omitempty"`
	TrailerFile  string      `json:"trailer_file,omitempty"`
	Categories   []uuid.UUID `json:"categories_id"`
	Genres       []uuid.UUID `json:"genres_id"`
	CastMembers  []uuid.UUID `json:"cast_members_id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	DeletedAt    *time.Time  `json:"deleted_at,omitempty"`
}

// RedisVideoCache implements VideoCache using Redis as the backing store.
type RedisVideoCache struct {
	client *redis.Client
}

// NewRedisVideoCache creates a new Redis-backed video cache.
func NewRedisVideoCache(client *redis.Client) *RedisVideoCache {
	return &RedisVideoCache{
		client: client,
	}
}

// Get retrieves a video from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisVideoCache) Get(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	key := c.buildKey(videoID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			record(metrics.CacheOpGet, metrics.CacheStatusMiss)
			return nil, nil
		}
		record(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("redis get: %w", err)
	}

	video, err := c.deserialize(data)
	if err != nil {
		record(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("deserialize video: %w", err)
	}

	record(metrics.CacheOpGet, metrics.CacheStatusHit)
	return video, nil
}

// Set stores a video in Redis cache with the specified TTL.
func (c *RedisVideoCache) Set(ctx context.Context, video *model.Video, ttl time.Duration) error {
	key := c.buildKey(video.ID)

	data, err := c.serialize(video)
	if err != nil {
		record(metrics.CacheOpSet, metrics.CacheStatusError)
		return fmt.Errorf("serialize video: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		record(metrics.CacheOpSet, metrics.CacheStatusError)
		return fmt.Errorf("redis set: %w", err)
	}

	record(metrics.CacheOpSet, metrics.CacheStatusSuccess)
	return nil
}

// Delete removes a video from Redis cache.
func (c *RedisVideoCache) Delete(ctx context.Context, videoID uuid.UUID) error {
	key := c.buildKey(videoID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		record(metrics.CacheOpDelete, metrics.CacheStatusError)
		return fmt.Errorf("redis del: %w", err)
	}

	record(metrics.CacheOpDelete, metrics.CacheStatusSuccess)
	return nil
}

func record(op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(op, status, metrics.CacheTypeRedis).Inc()
}

// buildKey constructs the Redis key for a video.
func (c *RedisVideoCache) buildKey(videoID uuid.UUID) string {
	return videoCacheKeyPrefix + videoID.String()
}

// serialize converts a Video to JSON bytes.
func (c *RedisVideoCache) serialize(video *model.Video) ([]byte, error) {
	v := videoJSON{
		ID:           video.ID,
		Title:        video.Title,
		Description:  video.Description,
		YearLaunched: video.YearLaunched,
		Opened:       video.Opened,
		Rating:       video.Rating.String(),
		Duration:     video.Duration,
		VideoFile:    video.VideoFile,
		ThumbFile:    video.ThumbFile,
		BannerFile:   video.BannerFile,
		TrailerFile:  video.TrailerFile,
		Categories:   video.CategoryIDs,
		Genres:       video.GenreIDs,
		CastMembers:  video.CastMemberIDs,
		CreatedAt:    video.CreatedAt,
		UpdatedAt:    video.UpdatedAt,
		DeletedAt:    video.DeletedAt,
	}
	return json.Marshal(v)
}

// deserialize converts JSON bytes to a Video.
func (c *RedisVideoCache) deserialize(data []byte) (*model.Video, error) {
	var v videoJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	if v.ID == uuid.Nil {
		return nil, errors.New("missing video ID")
	}

	video := &model.Video{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		YearLaunched: v.YearLaunched,
		Opened:       v.Opened,
		Rating:       model.Rating(v.Rating),
		Duration:     v.Duration,
		VideoFile:    v.VideoFile,
		ThumbFile:    v.ThumbFile,
		BannerFile:   v.BannerFile,
		TrailerFile:  v.TrailerFile,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		DeletedAt:    v.DeletedAt,
	}
	video.SetRelation(model.RelationCategories, v.Categories)
	video.SetRelation(model.RelationGenres, v.Genres)
	video.SetRelation(model.RelationCastMembers, v.CastMembers)

	return video, nil
}
