package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

// RelationRule enforces that submitted categories and genres cover each other:
// every genre shares a category with the submission and every category
// belongs to a submitted genre.
type RelationRule struct {
	refs repository.ReferenceRepository
}

// NewRelationRule creates a RelationRule that reads genre membership from refs.
func NewRelationRule(refs repository.ReferenceRepository) *RelationRule {
	return &RelationRule{refs: refs}
}

// Check validates a proposed pair of sets with one batched membership lookup.
// A failed check returns a *ValidationError wrapping ErrRelationMismatch.
func (r *RelationRule) Check(ctx context.Context, categoryIDs, genreIDs []uuid.UUID) error {
	categories := model.UniqueIDs(categoryIDs)
	genres := model.UniqueIDs(genreIDs)

	if len(categories) == 0 && len(genres) == 0 {
		return nil
	}

	var membership map[uuid.UUID][]uuid.UUID
	if len(categories) > 0 && len(genres) > 0 {
		var err error
		membership, err = r.refs.GenreCategories(ctx, genres)
		if err != nil {
			return fmt.Errorf("load genre categories: %w", err)
		}
	}

	err := CheckCoverage(categories, genres, membership)
	if err != nil {
		metrics.RelationValidationsTotal.WithLabelValues(metrics.ValidationFailed).Inc()
		return err
	}

	metrics.RelationValidationsTotal.WithLabelValues(metrics.ValidationPassed).Inc()
	return nil
}

// CheckCoverage evaluates the coverage rule against a known genre membership.
func CheckCoverage(categoryIDs, genreIDs []uuid.UUID, membership map[uuid.UUID][]uuid.UUID) error {
	switch {
	case len(categoryIDs) == 0 && len(genreIDs) == 0:
		return nil
	case len(categoryIDs) == 0:
		return &ValidationError{
			Field: model.RelationCategories.IDField(),
			Err:   fmt.Errorf("%w: genres require at least one category", ErrRelationMismatch),
		}
	case len(genreIDs) == 0:
		return &ValidationError{
			Field: model.RelationGenres.IDField(),
			Err:   fmt.Errorf("%w: categories require at least one genre", ErrRelationMismatch),
		}
	}

	submitted := make(map[uuid.UUID]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		submitted[id] = true
	}

	covered := make(map[uuid.UUID]bool, len(categoryIDs))
	for _, genreID := range genreIDs {
		shared := false
		for _, categoryID := range membership[genreID] {
			if submitted[categoryID] {
				shared = true
				covered[categoryID] = true
			}
		}
		if !shared {
			return &ValidationError{
				Field: model.RelationGenres.IDField(),
				Err:   fmt.Errorf("%w: genre %s has none of the submitted categories", ErrRelationMismatch, genreID),
			}
		}
	}

	for _, categoryID := range categoryIDs {
		if !covered[categoryID] {
			return &ValidationError{
				Field: model.RelationCategories.IDField(),
				Err:   fmt.Errorf("%w: category %s belongs to none of the submitted genres", ErrRelationMismatch, categoryID),
			}
		}
	}

	return nil
}
