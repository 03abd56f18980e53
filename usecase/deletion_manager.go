package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"autouploader/domain/model"
	"autouploader/infrastructure/logger"
)

// DeleteOutcome summarizes what happened to a source file after upload.
type DeleteOutcome struct {
	Succeeded bool
	Attempts  int
	LastError string
}

type IDeletionManager interface {
	Delete(ctx context.Context, task *model.UploadTask) DeleteOutcome
}

// DeletionManager removes uploaded source files, retrying while the file is
// still held open by another process.
type DeletionManager struct {
	retries int
	delay   time.Duration
	remove  func(path string) error
}

func NewDeletionManager(retries int, delay time.Duration) *DeletionManager {
	return NewDeletionManagerWithRemover(retries, delay, os.Remove)
}

func NewDeletionManagerWithRemover(retries int, delay time.Duration, remove func(path string) error) *DeletionManager {
	if retries < 1 {
		retries = 1
	}
	return &DeletionManager{retries: retries, delay: delay, remove: remove}
}

// Delete only acts on completed tasks. A file that is already gone counts
// as deleted.
func (m *DeletionManager) Delete(ctx context.Context, task *model.UploadTask) DeleteOutcome {
	if task == nil || task.Status != model.TaskStatusCompleted {
		return DeleteOutcome{LastError: "only completed uploads are deleted"}
	}

	var out DeleteOutcome
	for attempt := 1; attempt <= m.retries; attempt++ {
		out.Attempts = attempt
		err := m.remove(task.FilePath)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			out.Succeeded = true
			out.LastError = ""
			logger.GetLogger().WithField("path", task.FilePath).WithField("attempts", attempt).Info("Source file deleted")
			return out
		}
		out.LastError = err.Error()
		logger.GetLogger().WithFields(map[string]interface{}{
			"path":    task.FilePath,
			"attempt": attempt,
			"error":   err,
		}).Warn("Failed to delete source file")

		if attempt == m.retries {
			break
		}
		select {
		case <-ctx.Done():
			out.LastError = "deletion interrupted: " + out.LastError
			return out
		case <-time.After(m.delay):
		}
	}
	return out
}
