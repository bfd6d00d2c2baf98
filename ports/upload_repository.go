package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UploadRecord is one successful upload (and sheet selection)
type UploadRecord struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	Sheet       string    `db:"sheet" json:"sheet"`
	RowCount    int       `db:"row_count" json:"row_count"`
	ColumnCount int       `db:"column_count" json:"column_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// UploadRepository defines the interface for upload history storage
type UploadRepository interface {
	// Record stores an upload, assigning ID and CreatedAt when unset
	Record(ctx context.Context, rec *UploadRecord) error

	// ListRecent returns the newest uploads first
	ListRecent(ctx context.Context, limit int) ([]*UploadRecord, error)

	// ListBySession returns one session's uploads, newest first
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*UploadRecord, error)
}
