package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, "content_records", logger.NewTestLogger(t)), mock
}

func TestStore_Get(t *testing.T) {
	store, mock := setupStore(t)

	rows := sqlmock.NewRows([]string{"fields"}).
		AddRow([]byte(`{"VideoTitle":"Top 5","ProductNo1Price":199.99,"IntroTimingStatus":"Approved"}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT fields FROM "content_records" WHERE id = $1`)).
		WithArgs("rec-1").
		WillReturnRows(rows)

	rec, err := store.Get(context.Background(), "rec-1")

	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Nil(t, rec.Schema)
	assert.Equal(t, "Top 5", rec.String(model.FieldVideoTitle))
	assert.Equal(t, "199.99", rec.String("ProductNo1Price"))
	assert.Equal(t, model.ValueApproved, rec.String(model.FieldIntroTimingStatus))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(sqlmock.Sqlmock)
		wantCode apperrors.ErrorCode
	}{
		{
			name: "not found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT fields FROM`).WithArgs("rec-1").WillReturnError(sql.ErrNoRows)
			},
			wantCode: apperrors.ErrCodeRecordNotFound,
		},
		{
			name: "connection failed",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT fields FROM`).WithArgs("rec-1").WillReturnError(errors.New("connection refused"))
			},
			wantCode: apperrors.ErrCodeRecordStoreFailed,
		},
		{
			name: "corrupt json",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT fields FROM`).WithArgs("rec-1").
					WillReturnRows(sqlmock.NewRows([]string{"fields"}).AddRow([]byte(`{not json`)))
			},
			wantCode: apperrors.ErrCodeRecordStoreFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupStore(t)
			tt.setup(mock)

			_, err := store.Get(context.Background(), "rec-1")

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_Update(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "content_records" SET fields = fields || $2::jsonb, updated_at = now() WHERE id = $1`)).
		WithArgs("rec-1", `{"RenderStatus":"Done","VideoURL":"https://cdn.example.com/out.mp4"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), "rec-1", map[string]any{
		model.FieldRenderStatus: "Done",
		model.FieldVideoURL:     "https://cdn.example.com/out.mp4",
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update_Errors(t *testing.T) {
	t.Run("no row", func(t *testing.T) {
		store, mock := setupStore(t)
		mock.ExpectExec(`UPDATE "content_records"`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Update(context.Background(), "ghost", map[string]any{"RenderStatus": "Done"})

		var stdErr *apperrors.StandardError
		require.True(t, errors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeRecordNotFound, stdErr.Code)
	})

	t.Run("exec failed", func(t *testing.T) {
		store, mock := setupStore(t)
		mock.ExpectExec(`UPDATE "content_records"`).WillReturnError(errors.New("deadlock detected"))

		err := store.Update(context.Background(), "rec-1", map[string]any{"RenderStatus": "Done"})

		var stdErr *apperrors.StandardError
		require.True(t, errors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeRecordStoreFailed, stdErr.Code)
	})

	t.Run("empty update skips database", func(t *testing.T) {
		store, mock := setupStore(t)
		require.NoError(t, store.Update(context.Background(), "rec-1", map[string]any{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_EnsureSchema(t *testing.T) {
	store, mock := setupStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "content_records"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
