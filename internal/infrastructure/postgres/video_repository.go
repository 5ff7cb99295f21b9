package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// relationTable describes the join table backing one video relation.
type relationTable struct {
	joinTable string // e.g. category_video
	column    string // related id column in joinTable
	refTable  string // table holding the related rows
}

var relationTables = map[model.Relation]relationTable{
	model.RelationCategories:  {joinTable: "category_video", column: "category_id", refTable: "categories"},
	model.RelationGenres:      {joinTable: "genre_video", column: "genre_id", refTable: "genres"},
	model.RelationCastMembers: {joinTable: "cast_member_video", column: "cast_member_id", refTable: "cast_members"},
}

func lookupRelation(rel model.Relation) (relationTable, error) {
	t, ok := relationTables[rel]
	if !ok {
		return relationTable{}, fmt.Errorf("unknown relation %q", rel)
	}
	return t, nil
}

const videoColumns = `id, title, description, year_launched, opened, rating, duration,
		video_file, thumb_file, banner_file, trailer_file, created_at, updated_at, deleted_at`

// VideoRepository implements repository.VideoRepository using PostgreSQL.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new VideoRepository instance.
// Pass a pgx.Tx to run every statement inside that transaction.
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create persists a new video row.
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	const query = `
		INSERT INTO videos (` + videoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableVideos).Inc()

	_, err := r.db.Exec(ctx, query,
		video.ID,
		video.Title,
		video.Description,
		video.YearLaunched,
		video.Opened,
		video.Rating.String(),
		video.Duration,
		nullString(video.VideoFile),
		nullString(video.ThumbFile),
		nullString(video.BannerFile),
		nullString(video.TrailerFile),
		video.CreatedAt,
		video.UpdatedAt,
		video.DeletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateVideo
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByID retrieves a video row and all of its relation sets.
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	const query = `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE id = $1
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableVideos).Inc()

	video, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by ID: %w", err)
	}

	for _, rel := range model.Relations {
		ids, err := r.RelationIDs(ctx, video.ID, rel)
		if err != nil {
			return nil, err
		}
		video.SetRelation(rel, ids)
	}

	return video, nil
}

// Update persists scalar attributes and stored file names of a live video.
func (r *VideoRepository) Update(ctx context.Context, video *model.Video) error {
	const query = `
		UPDATE videos
		SET title = $2, description = $3, year_launched = $4, opened = $5, rating = $6,
			duration = $7, video_file = $8, thumb_file = $9, banner_file = $10,
			trailer_file = $11, updated_at = $12
		WHERE id = $1 AND deleted_at IS NULL
	`

	video.UpdatedAt = time.Now()
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableVideos).Inc()

	tag, err := r.db.Exec(ctx, query,
		video.ID,
		video.Title,
		video.Description,
		video.YearLaunched,
		video.Opened,
		video.Rating.String(),
		video.Duration,
		nullString(video.VideoFile),
		nullString(video.ThumbFile),
		nullString(video.BannerFile),
		nullString(video.TrailerFile),
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// SoftDelete sets deleted_at on a live video.
func (r *VideoRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE videos
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableVideos).Inc()

	tag, err := r.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to soft delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// Restore clears deleted_at on a soft-deleted video.
func (r *VideoRepository) Restore(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE videos
		SET deleted_at = NULL, updated_at = $2
		WHERE id = $1 AND deleted_at IS NOT NULL
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableVideos).Inc()

	tag, err := r.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to restore video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// SyncRelation replaces the member set of one relation with ids.
// It reads the current set, then deletes the members that are gone and
// inserts the new ones. Run it inside a transaction so the three statements
// are applied together.
func (r *VideoRepository) SyncRelation(ctx context.Context, videoID uuid.UUID, rel model.Relation, ids []uuid.UUID) error {
	t, err := lookupRelation(rel)
	if err != nil {
		return err
	}

	current, err := r.RelationIDs(ctx, videoID, rel)
	if err != nil {
		return err
	}

	added, removed := diffIDs(current, model.UniqueIDs(ids))

	if len(removed) > 0 {
		query := fmt.Sprintf(`DELETE FROM %s WHERE video_id = $1 AND %s = ANY($2)`, t.joinTable, t.column)
		metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryDelete, t.joinTable).Inc()
		if _, err := r.db.Exec(ctx, query, videoID, removed); err != nil {
			return fmt.Errorf("failed to remove %s from video: %w", rel, err)
		}
	}

	if len(added) > 0 {
		query := fmt.Sprintf(`INSERT INTO %s (video_id, %s) SELECT $1, unnest($2::uuid[])`, t.joinTable, t.column)
		metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, t.joinTable).Inc()
		if _, err := r.db.Exec(ctx, query, videoID, added); err != nil {
			return fmt.Errorf("failed to add %s to video: %w", rel, err)
		}
	}

	return nil
}

// RelationIDs returns the current member set of one relation.
func (r *VideoRepository) RelationIDs(ctx context.Context, videoID uuid.UUID, rel model.Relation) ([]uuid.UUID, error) {
	t, err := lookupRelation(rel)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE video_id = $1 ORDER BY %s`, t.column, t.joinTable, t.column)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, t.joinTable).Inc()

	rows, err := r.db.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s of video: %w", rel, err)
	}

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s of video: %w", rel, err)
	}

	return ids, nil
}

// scanVideo scans a single row into a Video model.
func scanVideo(row pgx.Row) (*model.Video, error) {
	var (
		video       model.Video
		rating      string
		videoFile   *string
		thumbFile   *string
		bannerFile  *string
		trailerFile *string
	)

	err := row.Scan(
		&video.ID,
		&video.Title,
		&video.Description,
		&video.YearLaunched,
		&video.Opened,
		&rating,
		&video.Duration,
		&videoFile,
		&thumbFile,
		&bannerFile,
		&trailerFile,
		&video.CreatedAt,
		&video.UpdatedAt,
		&video.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	video.Rating = model.Rating(rating)
	video.VideoFile = derefString(videoFile)
	video.ThumbFile = derefString(thumbFile)
	video.BannerFile = derefString(bannerFile)
	video.TrailerFile = derefString(trailerFile)

	return &video, nil
}

// scanIDs drains rows holding a single uuid column.
func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// diffIDs returns the ids of next missing from current and the ids of
// current missing from next.
func diffIDs(current, next []uuid.UUID) (added, removed []uuid.UUID) {
	inCurrent := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		inCurrent[id] = struct{}{}
	}
	inNext := make(map[uuid.UUID]struct{}, len(next))
	for _, id := range next {
		inNext[id] = struct{}{}
		if _, ok := inCurrent[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if _, ok := inNext[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time verification that VideoRepository implements repository.VideoRepository.
var _ repository.VideoRepository = (*VideoRepository)(nil)
