package usecase

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
)

// mockVideoRepository provides a configurable mock for VideoRepository.
type mockVideoRepository struct {
	createFn       func(ctx context.Context, video *model.Video) error
	getByIDFn      func(ctx context.Context, id uuid.UUID) (*model.Video, error)
	updateFn       func(ctx context.Context, video *model.Video) error
	softDeleteFn   func(ctx context.Context, id uuid.UUID) error
	restoreFn      func(ctx context.Context, id uuid.UUID) error
	syncRelationFn func(ctx context.Context, videoID uuid.UUID, rel model.Relation, ids []uuid.UUID) error
	relationIDsFn  func(ctx context.Context, videoID uuid.UUID, rel model.Relation) ([]uuid.UUID, error)
}

func (m *mockVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if m.createFn != nil {
		return m.createFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoRepository) Update(ctx context.Context, video *model.Video) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, id)
	}
	return nil
}

func (m *mockVideoRepository) Restore(ctx context.Context, id uuid.UUID) error {
	if m.restoreFn != nil {
		return m.restoreFn(ctx, id)
	}
	return nil
}

func (m *mockVideoRepository) SyncRelation(ctx context.Context, videoID uuid.UUID, rel model.Relation, ids []uuid.UUID) error {
	if m.syncRelationFn != nil {
		return m.syncRelationFn(ctx, videoID, rel, ids)
	}
	return nil
}

func (m *mockVideoRepository) RelationIDs(ctx context.Context, videoID uuid.UUID, rel model.Relation) ([]uuid.UUID, error) {
	if m.relationIDsFn != nil {
		return m.relationIDsFn(ctx, videoID, rel)
	}
	return []uuid.UUID{}, nil
}

// mockReferenceRepository provides a configurable mock for ReferenceRepository.
type mockReferenceRepository struct {
	existingIDsFn     func(ctx context.Context, rel model.Relation, ids []uuid.UUID) ([]uuid.UUID, error)
	genreCategoriesFn func(ctx context.Context, genreIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)

	mu           sync.Mutex
	genreLookups int
}

func (m *mockReferenceRepository) ExistingIDs(ctx context.Context, rel model.Relation, ids []uuid.UUID) ([]uuid.UUID, error) {
	if m.existingIDsFn != nil {
		return m.existingIDsFn(ctx, rel, ids)
	}
	return ids, nil
}

func (m *mockReferenceRepository) GenreCategories(ctx context.Context, genreIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	m.mu.Lock()
	m.genreLookups++
	m.mu.Unlock()
	if m.genreCategoriesFn != nil {
		return m.genreCategoriesFn(ctx, genreIDs)
	}
	return map[uuid.UUID][]uuid.UUID{}, nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	putFn     func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	deleteFn  func(ctx context.Context, key string) error
	existsFn  func(ctx context.Context, key string) (bool, error)
	fileURLFn func(ctx context.Context, key string) (string, error)
}

func (m *mockObjectStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.putFn != nil {
		return m.putFn(ctx, key, reader, size, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockObjectStorage) FileURL(ctx context.Context, key string) (string, error) {
	if m.fileURLFn != nil {
		return m.fileURLFn(ctx, key)
	}
	return "http://example.com/" + key, nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
// Published tasks are recorded when no publish function is set.
type mockMessageQueue struct {
	publishCleanupTaskFn  func(ctx context.Context, task repository.CleanupTask) error
	consumeCleanupTasksFn func(ctx context.Context, handler func(task repository.CleanupTask) error) error

	mu        sync.Mutex
	published []repository.CleanupTask
}

func (m *mockMessageQueue) PublishCleanupTask(ctx context.Context, task repository.CleanupTask) error {
	if m.publishCleanupTaskFn != nil {
		return m.publishCleanupTaskFn(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, task)
	return nil
}

func (m *mockMessageQueue) ConsumeCleanupTasks(ctx context.Context, handler func(task repository.CleanupTask) error) error {
	if m.consumeCleanupTasksFn != nil {
		return m.consumeCleanupTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

func (m *mockMessageQueue) tasks() []repository.CleanupTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.CleanupTask(nil), m.published...)
}
