package usecase

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"autouploader/domain/dto"
	"autouploader/domain/model"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"
)

type SchedulerOptions struct {
	MaxRetries             int
	FileUnavailableRetries int
	RetryBackoff           time.Duration
	RetryBackoffMax        time.Duration
	DeleteAfterUpload      bool
	// IdleWait bounds how long the worker sleeps before re-checking the queue.
	IdleWait time.Duration
	// NotifyTimeout bounds each task event delivery.
	NotifyTimeout time.Duration
}

// Scheduler owns every UploadTask and feeds them to the uploader one at a
// time. All task state sits behind mu; readers only ever get clones.
type Scheduler struct {
	mu       sync.RWMutex
	tasks    []*model.UploadTask // detection order
	byID     map[string]*model.UploadTask
	queue    []string // pending task ids in processing order
	uploaded map[string]struct{}
	running  *runningTask

	wake          chan struct{}
	deletions     sync.WaitGroup
	notifications sync.WaitGroup

	pool     ICredentialPool
	uploader repository.IUploader
	deleter  IDeletionManager
	metadata *MetadataBuilder
	history  repository.IUploadHistory
	notifier repository.ITaskNotifier
	opts     SchedulerOptions
	now      func() time.Time
}

type runningTask struct {
	id     string
	cancel context.CancelFunc
}

func NewScheduler(pool ICredentialPool, uploader repository.IUploader, deleter IDeletionManager, metadata *MetadataBuilder, opts SchedulerOptions) *Scheduler {
	if opts.IdleWait <= 0 {
		opts.IdleWait = 5 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Scheduler{
		byID:     map[string]*model.UploadTask{},
		uploaded: map[string]struct{}{},
		wake:     make(chan struct{}, 1),
		pool:     pool,
		uploader: uploader,
		deleter:  deleter,
		metadata: metadata,
		opts:     opts,
		now:      time.Now,
	}
}

// WithHistory enables cross-restart dedup (fluent)
func (s *Scheduler) WithHistory(history repository.IUploadHistory) *Scheduler {
	s.history = history
	return s
}

// WithNotifier publishes terminal task events (fluent)
func (s *Scheduler) WithNotifier(notifier repository.ITaskNotifier) *Scheduler {
	s.notifier = notifier
	return s
}

// Enqueue appends a pending task for path. Paths the scheduler already
// tracks, or that upload history knows, are rejected.
func (s *Scheduler) Enqueue(ctx context.Context, path string) (*model.UploadTask, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, model.NewUploadError(model.ErrorClassFileUnavailable, "cannot stat file", err)
	}
	if info.Size() == 0 {
		return nil, model.ErrEmptyFile
	}
	if s.Known(path) {
		return nil, model.ErrAlreadyQueued
	}
	if s.history != nil {
		done, err := s.history.WasUploaded(ctx, path, info.Size())
		if err != nil {
			logger.GetLogger().WithField("path", path).WithField("error", err).Warn("upload history lookup failed")
		} else if done {
			return nil, model.ErrAlreadyUploaded
		}
	}

	s.mu.Lock()
	if s.knownLocked(path) {
		s.mu.Unlock()
		return nil, model.ErrAlreadyQueued
	}
	task := model.NewUploadTask(path, info.Size(), s.now())
	s.tasks = append(s.tasks, task)
	s.byID[task.ID] = task
	s.queue = append(s.queue, task.ID)
	snapshot := task.Clone()
	s.mu.Unlock()

	logger.GetLogger().WithField("task_id", snapshot.ID).WithField("path", path).Info("Task queued")
	s.Wake()
	return snapshot, nil
}

// Known reports whether path has a live task or was uploaded by this process.
func (s *Scheduler) Known(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.knownLocked(path)
}

func (s *Scheduler) knownLocked(path string) bool {
	if _, ok := s.uploaded[path]; ok {
		return true
	}
	for _, t := range s.tasks {
		if t.FilePath == path && (!t.Status.IsTerminal() || t.Status == model.TaskStatusCompleted) {
			return true
		}
	}
	return false
}

// Cancel stops a pending or uploading task.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return model.ErrTaskNotFound
	}
	switch t.Status {
	case model.TaskStatusPending:
		s.removeFromQueueLocked(id)
		t.MarkCancelled(s.now())
		snapshot := t.Clone()
		s.mu.Unlock()
		logger.GetLogger().WithField("task_id", id).Info("Pending task cancelled")
		s.notify(ctx, dto.TaskEventCancelled, snapshot)
		return nil
	case model.TaskStatusUploading:
		t.CancelRequested = true
		if s.running != nil && s.running.id == id {
			s.running.cancel()
		}
		s.mu.Unlock()
		logger.GetLogger().WithField("task_id", id).Info("Cancellation requested for uploading task")
		return nil
	default:
		status := t.Status
		s.mu.Unlock()
		return fmt.Errorf("cannot cancel %s task: %w", status, model.ErrInvalidTaskState)
	}
}

// ClearCompleted drops every terminal task and returns how many went.
func (s *Scheduler) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	removed := 0
	for _, t := range s.tasks {
		if t.Status.IsTerminal() {
			delete(s.byID, t.ID)
			removed++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = kept
	return removed
}

// List returns clones in detection order.
func (s *Scheduler) List() []*model.UploadTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.UploadTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Get returns a clone of one task.
func (s *Scheduler) Get(id string) (*model.UploadTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// QueueOrder lists pending task ids in the order they will be attempted.
func (s *Scheduler) QueueOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.queue...)
}

type TaskCounts struct {
	Pending, Uploading, Completed, Failed int
}

func (s *Scheduler) Counts() TaskCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c TaskCounts
	for _, t := range s.tasks {
		switch t.Status {
		case model.TaskStatusPending:
			c.Pending++
		case model.TaskStatusUploading:
			c.Uploading++
		case model.TaskStatusCompleted:
			c.Completed++
		case model.TaskStatusError:
			c.Failed++
		}
	}
	return c
}

// Wake nudges the worker to re-evaluate the queue, e.g. after a manual
// project rotation.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// WaitDeletions blocks until every background deletion has finished.
func (s *Scheduler) WaitDeletions() {
	s.deletions.Wait()
}

// WaitNotifications blocks until every queued task event has been delivered
// or timed out.
func (s *Scheduler) WaitNotifications() {
	s.notifications.Wait()
}

func (s *Scheduler) removeFromQueueLocked(id string) {
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// notify publishes in the background so a slow sink never holds up the
// worker or a caller of Cancel.
func (s *Scheduler) notify(ctx context.Context, eventType string, task *model.UploadTask) {
	if s.notifier == nil {
		return
	}
	event := dto.TaskEvent{Type: eventType, Task: dto.ToTaskSnapshot(task), Occurred: s.now().UTC()}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(sendCtx, event); err != nil {
			logger.GetLogger().WithField("task_id", event.Task.ID).WithField("error", err).Warn("failed to publish task event")
		}
	}()
}

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
