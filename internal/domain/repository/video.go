package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/mediacatalog/internal/domain/model"
)

// VideoRepository defines the interface for video persistence operations.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type VideoRepository interface {
	// Create persists a new video row including its stored file names.
	// Relation sets are written with SyncRelation.
	// Returns ErrDuplicateVideo if the id is already taken.
	Create(ctx context.Context, video *model.Video) error

	// GetByID retrieves a video and its relation sets, soft-deleted or not.
	// Returns nil and ErrVideoNotFound if the video does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// Update persists scalar attributes and stored file names.
	// Returns ErrVideoNotFound if the video does not exist.
	Update(ctx context.Context, video *model.Video) error

	// SoftDelete sets the deletion timestamp of a live video.
	// Returns ErrVideoNotFound if no live video has the id.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// Restore clears the deletion timestamp of a deleted video.
	// Returns ErrVideoNotFound if no deleted video has the id.
	Restore(ctx context.Context, id uuid.UUID) error

	// SyncRelation replaces the full member set of one relation.
	// An empty ids slice clears the relation.
	SyncRelation(ctx context.Context, videoID uuid.UUID, rel model.Relation, ids []uuid.UUID) error

	// RelationIDs returns the current member set of one relation.
	RelationIDs(ctx context.Context, videoID uuid.UUID, rel model.Relation) ([]uuid.UUID, error)
}

// ReferenceRepository gives read access to the entities a video relates to.
type ReferenceRepository interface {
	// ExistingIDs returns the subset of ids that name live (not soft-deleted)
	// rows of the relation's table.
	ExistingIDs(ctx context.Context, rel model.Relation, ids []uuid.UUID) ([]uuid.UUID, error)

	// GenreCategories returns the known category membership of every
	// requested genre in a single lookup. Genres without categories are absent.
	GenreCategories(ctx context.Context, genreIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

// UnitOfWork is an open relational transaction. Repositories obtained from it
// read and write inside that transaction.
type UnitOfWork interface {
	Videos() VideoRepository
	References() ReferenceRepository

	// Commit makes every write durable.
	Commit(ctx context.Context) error

	// Rollback discards every write. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// TxBeginner opens units of work.
type TxBeginner interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
