package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"autouploader/domain/model"
	"autouploader/infrastructure/configuration"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadHistoryRepository_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadHistoryRepository(db)
	uploadedAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO upload_history (file_path, file_size, video_id, project_id, uploaded_at) VALUES ($1,$2,$3,$4,$5) RETURNING id`)).
		WithArgs("/videos/a.mp4", int64(42), "vid1", "proj-a", uploadedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	h := &model.UploadHistory{FilePath: "/videos/a.mp4", FileSize: 42, VideoID: "vid1", ProjectID: "proj-a", UploadedAt: uploadedAt}
	require.NoError(t, repo.Record(context.Background(), h))
	assert.Equal(t, int64(7), h.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadHistoryRepository_WasUploaded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadHistoryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM upload_history WHERE file_path=$1 AND file_size=$2)`)).
		WithArgs("/videos/a.mp4", int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.WasUploaded(context.Background(), "/videos/a.mp4", 42)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadHistoryRepository_ListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadHistoryRepository(db)
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, file_path, file_size, video_id, project_id, uploaded_at FROM upload_history ORDER BY uploaded_at DESC LIMIT $1`)).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_path", "file_size", "video_id", "project_id", "uploaded_at"}).
			AddRow(2, "/videos/b.mp4", 10, "vid2", "proj-a", at).
			AddRow(1, "/videos/a.mp4", 42, "vid1", "proj-b", at.Add(-time.Hour)))

	res, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, model.UploadHistory{ID: 2, FilePath: "/videos/b.mp4", FileSize: 10, VideoID: "vid2", ProjectID: "proj-a", UploadedAt: at}, res[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadHistoryRepositoryMSSQL_WasUploaded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadHistoryRepositoryMSSQL(db)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(1) FROM dbo.upload_history WHERE file_path=@p1 AND file_size=@p2`)).
		WithArgs("/videos/a.mp4", int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ok, err := repo.WasUploaded(context.Background(), "/videos/a.mp4", 42)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadHistoryRepositoryMSSQL_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadHistoryRepositoryMSSQL(db)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO dbo.upload_history (file_path, file_size, video_id, project_id, uploaded_at) OUTPUT INSERTED.id VALUES (@p1,@p2,@p3,@p4,@p5)`)).
		WithArgs("/videos/a.mp4", int64(42), "vid1", "proj-a", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	h := &model.UploadHistory{FilePath: "/videos/a.mp4", FileSize: 42, VideoID: "vid1", ProjectID: "proj-a"}
	require.NoError(t, repo.Record(context.Background(), h))
	assert.Equal(t, int64(3), h.ID)
	assert.False(t, h.UploadedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUploadHistorySchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS upload_history`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS idx_upload_history_file`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureUploadHistorySchema(db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDSNBuilders(t *testing.T) {
	pg := postgresDSN(configuration.Db{Name: "uploads", Host: "localhost", User: "app", Password: "pw"})
	assert.Equal(t, "postgres://app:pw@localhost:5432/uploads?sslmode=disable", pg)

	ms := mssqlDSN(configuration.Db{Name: "uploads", Host: "db.example.com", Port: "1433", User: "sa", Password: "pw"})
	assert.Equal(t, "sqlserver://sa:pw@db.example.com:1433?database=uploads&encrypt=true", ms)
}
