package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
)

// VideoOutput is a persisted video with the URLs of its stored files.
type VideoOutput struct {
	Video    *model.Video
	FileURLs map[model.FileField]string
}

// VideoService defines the interface for video business logic operations.
type VideoService interface {
	// CreateVideo validates a create payload and persists the video, its
	// relations and its files together.
	CreateVideo(ctx context.Context, attrs model.VideoAttributes) (*VideoOutput, error)

	// UpdateVideo applies a partial payload to a live video. Relations absent
	// from attrs are left untouched; present empty relations are cleared.
	UpdateVideo(ctx context.Context, videoID uuid.UUID, attrs model.VideoAttributes) (*VideoOutput, error)

	// GetVideo retrieves a live video by ID.
	GetVideo(ctx context.Context, videoID uuid.UUID) (*VideoOutput, error)

	// DeleteVideo soft deletes a video. Files and relations are kept.
	DeleteVideo(ctx context.Context, videoID uuid.UUID) error

	// RestoreVideo clears the deletion of a soft-deleted video.
	RestoreVideo(ctx context.Context, videoID uuid.UUID) (*VideoOutput, error)
}

type videoService struct {
	videos  repository.VideoRepository
	refs    repository.ReferenceRepository
	rule    *RelationRule
	saga    *VideoSaga
	storage repository.ObjectStorage
}

// NewVideoService creates a new VideoService instance.
// videos and refs are used outside of any transaction for reads and
// pre-saga validation.
func NewVideoService(
	videos repository.VideoRepository,
	refs repository.ReferenceRepository,
	saga *VideoSaga,
	storage repository.ObjectStorage,
) VideoService {
	return &videoService{
		videos:  videos,
		refs:    refs,
		rule:    NewRelationRule(refs),
		saga:    saga,
		storage: storage,
	}
}

// CreateVideo validates the payload and runs the create saga.
func (s *videoService) CreateVideo(ctx context.Context, attrs model.VideoAttributes) (*VideoOutput, error) {
	if err := attrs.ValidateForCreate(); err != nil {
		return nil, asValidationError(err)
	}

	if err := s.checkReferences(ctx, attrs); err != nil {
		return nil, err
	}

	categories, _ := attrs.RelationIDs(model.RelationCategories)
	genres, _ := attrs.RelationIDs(model.RelationGenres)
	if err := s.rule.Check(ctx, categories, genres); err != nil {
		return nil, err
	}

	video, err := s.saga.Create(ctx, attrs)
	if err != nil {
		return nil, err
	}

	return s.output(ctx, video), nil
}

// UpdateVideo validates the payload against the current state and runs the
// update saga. When only one of categories and genres is supplied, the
// coverage rule is checked against the persisted other side.
func (s *videoService) UpdateVideo(ctx context.Context, videoID uuid.UUID, attrs model.VideoAttributes) (*VideoOutput, error) {
	if err := attrs.ValidateForUpdate(); err != nil {
		return nil, asValidationError(err)
	}

	current, err := s.live(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, attrs); err != nil {
		return nil, err
	}

	categories, hasCategories := attrs.RelationIDs(model.RelationCategories)
	genres, hasGenres := attrs.RelationIDs(model.RelationGenres)
	if hasCategories || hasGenres {
		if !hasCategories {
			categories = current.CategoryIDs
		}
		if !hasGenres {
			genres = current.GenreIDs
		}
		if err := s.rule.Check(ctx, categories, genres); err != nil {
			return nil, err
		}
	}

	video, err := s.saga.Update(ctx, videoID, attrs)
	if err != nil {
		return nil, err
	}

	return s.output(ctx, video), nil
}

// GetVideo retrieves a live video by ID.
func (s *videoService) GetVideo(ctx context.Context, videoID uuid.UUID) (*VideoOutput, error) {
	video, err := s.live(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return s.output(ctx, video), nil
}

// DeleteVideo soft deletes a video.
func (s *videoService) DeleteVideo(ctx context.Context, videoID uuid.UUID) error {
	return s.videos.SoftDelete(ctx, videoID)
}

// RestoreVideo restores a soft-deleted video.
func (s *videoService) RestoreVideo(ctx context.Context, videoID uuid.UUID) (*VideoOutput, error) {
	if err := s.videos.Restore(ctx, videoID); err != nil {
		return nil, err
	}
	return s.GetVideo(ctx, videoID)
}

// live loads a video, treating soft-deleted rows as missing.
func (s *videoService) live(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video.IsDeleted() {
		return nil, repository.ErrVideoNotFound
	}
	return video, nil
}

// checkReferences verifies that every supplied relation id names a live row.
func (s *videoService) checkReferences(ctx context.Context, attrs model.VideoAttributes) error {
	for _, rel := range model.Relations {
		ids, ok := attrs.RelationIDs(rel)
		if !ok || len(ids) == 0 {
			continue
		}
		ids = model.UniqueIDs(ids)

		found, err := s.refs.ExistingIDs(ctx, rel, ids)
		if err != nil {
			return fmt.Errorf("check %s: %w", rel, err)
		}
		if len(found) == len(ids) {
			continue
		}

		known := make(map[uuid.UUID]bool, len(found))
		for _, id := range found {
			known[id] = true
		}
		for _, id := range ids {
			if !known[id] {
				return &ValidationError{
					Field: rel.IDField(),
					Err:   fmt.Errorf("%w: %s", ErrUnknownReference, id),
				}
			}
		}
	}
	return nil
}

// output never fails: by the time it runs a write has already committed,
// so a field whose URL cannot be resolved is logged and left out.
func (s *videoService) output(ctx context.Context, video *model.Video) *VideoOutput {
	return &VideoOutput{Video: video, FileURLs: fileURLs(ctx, s.storage, video)}
}

// fileURLs resolves the URL of every non-empty file field.
func fileURLs(ctx context.Context, storage repository.ObjectStorage, video *model.Video) map[model.FileField]string {
	urls := make(map[model.FileField]string, len(model.FileFields))
	for _, field := range model.FileFields {
		name := video.File(field)
		if name == "" {
			continue
		}
		url, err := storage.FileURL(ctx, video.FileKey(name))
		if err != nil {
			slog.Warn("failed to resolve file url",
				"video_id", video.ID,
				"field", field,
				"error", err,
			)
			continue
		}
		urls[field] = url
	}
	return urls
}
