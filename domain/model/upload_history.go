package model

import "time"

// UploadHistory is a persisted record of a finished upload, used to avoid
// re-uploading the same file after a restart.
type UploadHistory struct {
	ID         int64     `json:"id"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	VideoID    string    `json:"video_id"`
	ProjectID  string    `json:"project_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}
