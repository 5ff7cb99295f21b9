package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
)

func TestTxManager_CommitRunsStatementsInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	videoID := uuid.New()
	categoryID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT category_id FROM category_video").
		WithArgs(videoID).
		WillReturnRows(pgxmock.NewRows([]string{"category_id"}))
	mock.ExpectExec("INSERT INTO category_video").
		WithArgs(videoID, []uuid.UUID{categoryID}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ctx := context.Background()
	uow, err := NewTxManager(mock).Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() unexpected error = %v", err)
	}

	if err := uow.Videos().SyncRelation(ctx, videoID, model.RelationCategories, []uuid.UUID{categoryID}); err != nil {
		t.Fatalf("SyncRelation() unexpected error = %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit() unexpected error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTxManager_Rollback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := context.Background()
	uow, err := NewTxManager(mock).Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() unexpected error = %v", err)
	}

	if err := uow.Rollback(ctx); err != nil {
		t.Errorf("Rollback() unexpected error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTxManager_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mockFn  func(mock pgxmock.PgxPoolIface)
		run     func(ctx context.Context, m *TxManager) error
		wantErr error
	}{
		{
			name: "begin failure",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
			},
			run: func(ctx context.Context, m *TxManager) error {
				_, err := m.Begin(ctx)
				return err
			},
			wantErr: errors.New("failed to begin transaction"),
		},
		{
			name: "commit on closed transaction",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(pgx.ErrTxClosed)
			},
			run: func(ctx context.Context, m *TxManager) error {
				uow, err := m.Begin(ctx)
				if err != nil {
					return err
				}
				return uow.Commit(ctx)
			},
			wantErr: repository.ErrTxDone,
		},
		{
			name: "rollback of closed transaction is ignored",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)
			},
			run: func(ctx context.Context, m *TxManager) error {
				uow, err := m.Begin(ctx)
				if err != nil {
					return err
				}
				return uow.Rollback(ctx)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			err = tt.run(context.Background(), NewTxManager(mock))

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) && !containsError(err, tt.wantErr) {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
