package dto

import "time"

// UploadMetadata is the snippet/status payload sent when a session is opened
type UploadMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Privacy     string   `json:"privacy"`
	MadeForKids bool     `json:"made_for_kids"`
	ContentType string   `json:"content_type"`
	NotifySubs  bool     `json:"notify_subscribers"`
}

type UploadResult struct {
	VideoID  string `json:"video_id"`
	VideoURL string `json:"video_url"`
}

// ProgressFunc receives acknowledged bytes after each chunk
type ProgressFunc func(sent, total int64)

// EngineStatus is the summary shown next to the task list
type EngineStatus struct {
	Monitoring      bool       `json:"monitoring"`
	Folder          string     `json:"folder"`
	WatcherError    string     `json:"watcher_error,omitempty"`
	LimitReached    bool       `json:"limit_reached"`
	LimitResetAt    *time.Time `json:"limit_reset_at"`
	ActiveProjectID string     `json:"active_project_id"`
	Pending         int        `json:"pending"`
	Uploading       int        `json:"uploading"`
	Completed       int        `json:"completed"`
	Failed          int        `json:"failed"`
}

type CancelTaskResult string

const (
	CancelSucceeded    CancelTaskResult = "success"
	CancelNotFound     CancelTaskResult = "not_found"
	CancelInvalidState CancelTaskResult = "invalid_state"
)

type SelectProjectResult string

const (
	SelectProjectSucceeded SelectProjectResult = "success"
	SelectProjectNeedsAuth SelectProjectResult = "needs_auth"
	SelectProjectUnknown   SelectProjectResult = "unknown"
)

type StartWatchingRequest struct {
	Folder string `json:"folder" binding:"required"`
}

type SelectRequest struct {
	ID string `json:"id" binding:"required"`
}

type AddCredentialProjectRequest struct {
	Name         string `json:"name"`
	ClientSecret string `json:"client_secret" binding:"required"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
