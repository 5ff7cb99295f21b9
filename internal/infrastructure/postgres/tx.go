package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
)

// txStarter abstracts pgxpool.Pool (and pgxmock) for beginning transactions.
type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager opens PostgreSQL transactions as repository units of work.
type TxManager struct {
	db txStarter
}

// NewTxManager creates a new TxManager over a pool.
func NewTxManager(db txStarter) *TxManager {
	return &TxManager{db: db}
}

// Begin starts a transaction. Repositories returned by the unit of work
// share that transaction.
func (m *TxManager) Begin(ctx context.Context) (repository.UnitOfWork, error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &unitOfWork{
		tx:         tx,
		videos:     NewVideoRepository(tx),
		references: NewReferenceRepository(tx),
	}, nil
}

type unitOfWork struct {
	tx         pgx.Tx
	videos     *VideoRepository
	references *ReferenceRepository
}

func (u *unitOfWork) Videos() repository.VideoRepository {
	return u.videos
}

func (u *unitOfWork) References() repository.ReferenceRepository {
	return u.references
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return repository.ErrTxDone
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

var _ repository.TxBeginner = (*TxManager)(nil)
