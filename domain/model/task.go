package model

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an UploadTask
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusUploading TaskStatus = "uploading"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusError     TaskStatus = "error"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusError, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

const videoURLPrefix = "https://youtu.be/"

// UploadTask tracks one file from detection to its final upload outcome.
// Instances are owned by the scheduler; everything handed outside is a Clone.
type UploadTask struct {
	ID              string     `json:"id"`
	FilePath        string     `json:"file_path"`
	Filename        string     `json:"filename"`
	FileSize        int64      `json:"file_size"`
	Status          TaskStatus `json:"status"`
	Progress        float64    `json:"progress"`
	CreatedAt       time.Time  `json:"created_at"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Error           *string    `json:"error"`
	DeleteAttempted bool       `json:"delete_attempted"`
	DeleteSucceeded bool       `json:"delete_succeeded"`
	DeleteError     *string    `json:"delete_error"`
	VideoID         string     `json:"video_id"`
	VideoURL        string     `json:"video_url"`
	ProjectID       string     `json:"project_id"`
	RetryCount      int        `json:"retry_count"`
	NextAttemptAt   time.Time  `json:"next_attempt_at"`
	CancelRequested bool       `json:"cancel_requested"`
}

func NewUploadTask(path string, size int64, now time.Time) *UploadTask {
	return &UploadTask{
		ID:        uuid.NewString(),
		FilePath:  path,
		Filename:  filepath.Base(path),
		FileSize:  size,
		Status:    TaskStatusPending,
		CreatedAt: now,
	}
}

// MarkUploading starts an attempt. Progress restarts from zero since every
// attempt opens a new upload session.
func (t *UploadTask) MarkUploading(projectID string, size int64, now time.Time) {
	t.Status = TaskStatusUploading
	t.ProjectID = projectID
	t.FileSize = size
	t.Progress = 0
	t.StartTime = &now
	t.EndTime = nil
}

// UpdateProgress never lets progress regress or exceed 100 within an attempt.
func (t *UploadTask) UpdateProgress(sent, total int64) {
	if t.Status != TaskStatusUploading || total <= 0 {
		return
	}
	p := float64(sent) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	if p > t.Progress {
		t.Progress = p
	}
}

func (t *UploadTask) MarkCompleted(videoID string, now time.Time) {
	t.Status = TaskStatusCompleted
	t.Progress = 100
	t.VideoID = videoID
	t.VideoURL = videoURLPrefix + videoID
	t.Error = nil
	t.EndTime = &now
}

func (t *UploadTask) MarkError(message string, now time.Time) {
	t.Status = TaskStatusError
	t.Error = &message
	t.EndTime = &now
}

func (t *UploadTask) MarkCancelled(now time.Time) {
	t.Status = TaskStatusCancelled
	msg := "cancelled by user"
	t.Error = &msg
	t.EndTime = &now
}

// ReturnToPending puts an uploading task back in the queue. The last error is
// kept so operators can see why the attempt did not finish.
func (t *UploadTask) ReturnToPending(message string, notBefore time.Time) {
	t.Status = TaskStatusPending
	t.Progress = 0
	t.StartTime = nil
	t.NextAttemptAt = notBefore
	if message != "" {
		t.Error = &message
	}
}

// Clone returns a deep copy safe to hand to readers.
func (t *UploadTask) Clone() *UploadTask {
	c := *t
	c.StartTime = cloneTime(t.StartTime)
	c.EndTime = cloneTime(t.EndTime)
	c.Error = cloneString(t.Error)
	c.DeleteError = cloneString(t.DeleteError)
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
