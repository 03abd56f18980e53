package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"autouploader/domain/model"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"
)

// EnsureUploadHistorySchema creates the upload_history table if not exists
func EnsureUploadHistorySchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS upload_history (
        id BIGSERIAL PRIMARY KEY,
        file_path TEXT NOT NULL,
        file_size BIGINT NOT NULL,
        video_id TEXT NOT NULL,
        project_id TEXT NOT NULL,
        uploaded_at TIMESTAMPTZ NOT NULL
    )`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create upload_history table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_upload_history_file ON upload_history(file_path, file_size)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_upload_history_file")
	}
	return nil
}

type UploadHistoryRepository struct{ db *sql.DB }

func NewUploadHistoryRepository(db *sql.DB) repository.IUploadHistory {
	return &UploadHistoryRepository{db: db}
}

func (r *UploadHistoryRepository) Record(ctx context.Context, h *model.UploadHistory) error {
	if h.UploadedAt.IsZero() {
		h.UploadedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO upload_history (file_path, file_size, video_id, project_id, uploaded_at) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		h.FilePath, h.FileSize, h.VideoID, h.ProjectID, h.UploadedAt)
	if err := row.Scan(&h.ID); err != nil {
		return fmt.Errorf("failed to record upload history: %w", err)
	}
	return nil
}

func (r *UploadHistoryRepository) WasUploaded(ctx context.Context, filePath string, fileSize int64) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM upload_history WHERE file_path=$1 AND file_size=$2)`, filePath, fileSize)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query upload history: %w", err)
	}
	return exists, nil
}

func (r *UploadHistoryRepository) ListRecent(ctx context.Context, limit int) ([]model.UploadHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, file_path, file_size, video_id, project_id, uploaded_at FROM upload_history ORDER BY uploaded_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]model.UploadHistory, error) {
	var out []model.UploadHistory
	for rows.Next() {
		var h model.UploadHistory
		if err := rows.Scan(&h.ID, &h.FilePath, &h.FileSize, &h.VideoID, &h.ProjectID, &h.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
