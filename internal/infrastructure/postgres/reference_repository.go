package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

// ReferenceRepository implements repository.ReferenceRepository using PostgreSQL.
type ReferenceRepository struct {
	db DBTX
}

// NewReferenceRepository creates a new ReferenceRepository instance.
func NewReferenceRepository(db DBTX) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ExistingIDs returns which of ids are live rows of the relation's table.
func (r *ReferenceRepository) ExistingIDs(ctx context.Context, rel model.Relation, ids []uuid.UUID) ([]uuid.UUID, error) {
	t, err := lookupRelation(rel)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1) AND deleted_at IS NULL`, t.refTable)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, t.refTable).Inc()

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing %s: %w", rel, err)
	}

	found, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing %s: %w", rel, err)
	}

	return found, nil
}

// GenreCategories loads the category membership of every genre in genreIDs
// with one query. Soft-deleted genres and categories are ignored.
func (r *ReferenceRepository) GenreCategories(ctx context.Context, genreIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	const query = `
		SELECT cg.genre_id, cg.category_id
		FROM category_genre cg
		JOIN genres g ON g.id = cg.genre_id AND g.deleted_at IS NULL
		JOIN categories c ON c.id = cg.category_id AND c.deleted_at IS NULL
		WHERE cg.genre_id = ANY($1)
	`

	membership := make(map[uuid.UUID][]uuid.UUID, len(genreIDs))
	if len(genreIDs) == 0 {
		return membership, nil
	}

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableCategoryGenre).Inc()

	rows, err := r.db.Query(ctx, query, genreIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query genre categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var genreID, categoryID uuid.UUID
		if err := rows.Scan(&genreID, &categoryID); err != nil {
			return nil, fmt.Errorf("failed to scan genre category: %w", err)
		}
		membership[genreID] = append(membership[genreID], categoryID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating genre categories: %w", err)
	}

	return membership, nil
}

var _ repository.ReferenceRepository = (*ReferenceRepository)(nil)
