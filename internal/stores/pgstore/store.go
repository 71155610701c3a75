// internal/stores/pgstore/store.go
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

// Store keeps each record as one row with a JSONB field map. Updates merge
// into the map in a single statement.
type Store struct {
	db     *sql.DB
	table  string
	logger logger.Logger

	getQuery    string
	updateQuery string
}

func New(db *sql.DB, table string, log logger.Logger) *Store {
	if table == "" {
		table = "content_records"
	}
	quoted := pq.QuoteIdentifier(table)
	return &Store{
		db:          db,
		table:       quoted,
		logger:      log.WithFields(map[string]interface{}{"component": "postgres-record-store"}),
		getQuery:    fmt.Sprintf(`SELECT fields FROM %s WHERE id = $1`, quoted),
		updateQuery: fmt.Sprintf(`UPDATE %s SET fields = fields || $2::jsonb, updated_at = now() WHERE id = $1`, quoted),
	}
}

// EnsureSchema creates the records table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table))
	if err != nil {
		return apperrors.NewRecordStoreFailedError("ensure schema", err)
	}
	return nil
}

// Get returns a fresh snapshot. The JSONB map only holds populated fields,
// so the snapshot carries no schema.
func (s *Store) Get(ctx context.Context, id string) (model.Record, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, s.getQuery, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, apperrors.NewRecordNotFoundError(id)
	}
	if err != nil {
		return model.Record{}, apperrors.NewRecordStoreFailedError("get", err)
	}

	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return model.Record{}, apperrors.NewRecordStoreFailedError("decode", err)
		}
	}
	return model.Record{ID: id, Fields: fields}, nil
}

// Update merges fields into the record in one statement.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("encode fields: %v", err))
	}

	res, err := s.db.ExecContext(ctx, s.updateQuery, id, string(patch))
	if err != nil {
		return apperrors.NewRecordStoreFailedError("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewRecordStoreFailedError("update", err)
	}
	if n == 0 {
		return apperrors.NewRecordNotFoundError(id)
	}

	s.logger.Debug("record updated", map[string]interface{}{
		"recordId": id,
		"fields":   len(fields),
	})
	return nil
}
