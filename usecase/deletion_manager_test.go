package usecase_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"autouploader/domain/model"
	"autouploader/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedTask(path string) *model.UploadTask {
	task := model.NewUploadTask(path, 10, time.Now())
	task.MarkUploading("proj-a", 10, time.Now())
	task.MarkCompleted("v1", time.Now())
	return task
}

func TestDeletionManager_RemovesFile(t *testing.T) {
	path := writeVideo(t, t.TempDir(), "a.mp4")
	m := usecase.NewDeletionManager(3, time.Millisecond)

	out := m.Delete(context.Background(), completedTask(path))
	assert.True(t, out.Succeeded)
	assert.Equal(t, 1, out.Attempts)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDeletionManager_MissingFileCountsAsDeleted(t *testing.T) {
	m := usecase.NewDeletionManager(3, time.Millisecond)
	out := m.Delete(context.Background(), completedTask(t.TempDir()+"/gone.mp4"))
	assert.True(t, out.Succeeded)
	assert.Empty(t, out.LastError)
}

func TestDeletionManager_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	m := usecase.NewDeletionManagerWithRemover(5, time.Millisecond, func(string) error {
		calls++
		if calls < 3 {
			return errors.New("sharing violation")
		}
		return nil
	})
	out := m.Delete(context.Background(), completedTask("/videos/a.mp4"))
	assert.True(t, out.Succeeded)
	assert.Equal(t, 3, out.Attempts)
}

func TestDeletionManager_GivesUpAfterRetryCount(t *testing.T) {
	calls := 0
	m := usecase.NewDeletionManagerWithRemover(3, time.Millisecond, func(string) error {
		calls++
		return errors.New("sharing violation")
	})
	out := m.Delete(context.Background(), completedTask("/videos/a.mp4"))
	assert.False(t, out.Succeeded)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "sharing violation", out.LastError)
}

func TestDeletionManager_OnlyCompletedTasks(t *testing.T) {
	path := writeVideo(t, t.TempDir(), "a.mp4")
	m := usecase.NewDeletionManager(3, time.Millisecond)

	task := model.NewUploadTask(path, 10, time.Now())
	task.MarkError("boom", time.Now())
	out := m.Delete(context.Background(), task)
	assert.False(t, out.Succeeded)
	assert.Equal(t, 0, out.Attempts)
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestDeletionManager_StopsWaitingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := usecase.NewDeletionManagerWithRemover(5, time.Hour, func(string) error { return errors.New("locked") })

	out := m.Delete(ctx, completedTask("/videos/a.mp4"))
	assert.False(t, out.Succeeded)
	assert.Equal(t, 1, out.Attempts)
	assert.Contains(t, out.LastError, "interrupted")
}
