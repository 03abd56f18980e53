package dto

import (
	"time"

	"autouploader/domain/model"
)

// Res is the envelope used for error and simple status responses
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// TaskSnapshot is the read-only view of a task handed to the status layer
type TaskSnapshot struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	FilePath        string     `json:"file_path"`
	FileSize        int64      `json:"file_size"`
	Status          string     `json:"status"`
	Progress        float64    `json:"progress"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Error           *string    `json:"error"`
	DeleteAttempted bool       `json:"delete_attempted"`
	DeleteSucceeded bool       `json:"delete_succeeded"`
	DeleteError     *string    `json:"delete_error"`
	VideoURL        string     `json:"video_url"`
	ProjectID       string     `json:"project_id"`
	RetryCount      int        `json:"retry_count"`
}

func ToTaskSnapshot(t *model.UploadTask) TaskSnapshot {
	c := t.Clone()
	return TaskSnapshot{
		ID:              c.ID,
		Filename:        c.Filename,
		FilePath:        c.FilePath,
		FileSize:        c.FileSize,
		Status:          string(c.Status),
		Progress:        c.Progress,
		StartTime:       c.StartTime,
		EndTime:         c.EndTime,
		Error:           c.Error,
		DeleteAttempted: c.DeleteAttempted,
		DeleteSucceeded: c.DeleteSucceeded,
		DeleteError:     c.DeleteError,
		VideoURL:        c.VideoURL,
		ProjectID:       c.ProjectID,
		RetryCount:      c.RetryCount,
	}
}

// TaskEvent is published when a task reaches a terminal state
type TaskEvent struct {
	Type     string       `json:"type"`
	Task     TaskSnapshot `json:"task"`
	Occurred time.Time    `json:"occurred"`
}

const (
	TaskEventCompleted = "task.completed"
	TaskEventFailed    = "task.failed"
	TaskEventCancelled = "task.cancelled"
)
