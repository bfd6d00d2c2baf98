package postgres

import (
	"context"
	"time"

	"flowdash/internal/errors"
	"flowdash/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const defaultListLimit = 20

// UploadRepositoryImpl implements UploadRepository for PostgreSQL
type UploadRepositoryImpl struct {
	db *sqlx.DB
}

// NewUploadRepository creates a new PostgreSQL upload repository
func NewUploadRepository(db *sqlx.DB) ports.UploadRepository {
	return &UploadRepositoryImpl{db: db}
}

// Record inserts an upload row
func (r *UploadRepositoryImpl) Record(ctx context.Context, rec *ports.UploadRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (id, session_id, file_name, sheet, row_count, column_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.SessionID, rec.FileName, rec.Sheet, rec.RowCount, rec.ColumnCount, rec.CreatedAt)
	if err != nil {
		return errors.DatabaseError("failed to record upload", err)
	}
	return nil
}

// ListRecent returns the newest uploads across all sessions
func (r *UploadRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*ports.UploadRecord, error) {
	var records []*ports.UploadRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, session_id, file_name, sheet, row_count, column_count, created_at
		FROM uploads
		ORDER BY created_at DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, errors.DatabaseError("failed to list uploads", err)
	}
	return records, nil
}

// ListBySession returns the uploads of one browser session
func (r *UploadRepositoryImpl) ListBySession(ctx context.Context, sessionID string, limit int) ([]*ports.UploadRecord, error) {
	var records []*ports.UploadRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, session_id, file_name, sheet, row_count, column_count, created_at
		FROM uploads
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, normalizeLimit(limit))
	if err != nil {
		return nil, errors.DatabaseError("failed to list session uploads", err)
	}
	return records, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
