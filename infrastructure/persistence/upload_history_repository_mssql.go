package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"autouploader/domain/model"
	"autouploader/domain/repository"
)

// EnsureUploadHistorySchemaMSSQL creates the history table on MSSQL if not exists
func EnsureUploadHistorySchemaMSSQL(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.upload_history') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.upload_history (
        id BIGINT IDENTITY(1,1) NOT NULL PRIMARY KEY,
        file_path NVARCHAR(1024) NOT NULL,
        file_size BIGINT NOT NULL,
        video_id NVARCHAR(64) NOT NULL,
        project_id NVARCHAR(255) NOT NULL,
        uploaded_at DATETIMEOFFSET NOT NULL
    );
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create upload_history table (mssql): %w", err)
	}
	return nil
}

type UploadHistoryRepositoryMSSQL struct{ db *sql.DB }

func NewUploadHistoryRepositoryMSSQL(db *sql.DB) repository.IUploadHistory {
	return &UploadHistoryRepositoryMSSQL{db: db}
}

func (r *UploadHistoryRepositoryMSSQL) Record(ctx context.Context, h *model.UploadHistory) error {
	if h.UploadedAt.IsZero() {
		h.UploadedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO dbo.upload_history (file_path, file_size, video_id, project_id, uploaded_at) OUTPUT INSERTED.id VALUES (@p1,@p2,@p3,@p4,@p5)`,
		h.FilePath, h.FileSize, h.VideoID, h.ProjectID, h.UploadedAt)
	if err := row.Scan(&h.ID); err != nil {
		return fmt.Errorf("failed to record upload history: %w", err)
	}
	return nil
}

func (r *UploadHistoryRepositoryMSSQL) WasUploaded(ctx context.Context, filePath string, fileSize int64) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM dbo.upload_history WHERE file_path=@p1 AND file_size=@p2`, filePath, fileSize)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query upload history: %w", err)
	}
	return count > 0, nil
}

func (r *UploadHistoryRepositoryMSSQL) ListRecent(ctx context.Context, limit int) ([]model.UploadHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT TOP (@p1) id, file_path, file_size, video_id, project_id, uploaded_at FROM dbo.upload_history ORDER BY uploaded_at DESC`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}
