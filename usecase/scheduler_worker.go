package usecase

import (
	"context"
	"errors"
	"time"

	"autouploader/domain/dto"
	"autouploader/domain/model"
	"autouploader/infrastructure/logger"
	"autouploader/infrastructure/utils"
)

// Run is the single upload worker. It returns once ctx is done and every
// background deletion and notification has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.GetLogger().Info("Upload worker started")
	defer func() {
		s.deletions.Wait()
		s.notifications.Wait()
		logger.GetLogger().Info("Upload worker stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		job, wait := s.next(ctx)
		if job == nil {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-s.wake:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}
		s.process(ctx, job)
	}
}

type uploadJob struct {
	task       *model.UploadTask
	credential *model.Credential
	ctx        context.Context
	cancel     context.CancelFunc
}

// next claims the first eligible pending task, or reports how long to sleep.
func (s *Scheduler) next(ctx context.Context) (*uploadJob, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	wait := s.opts.IdleWait
	var task *model.UploadTask
	for _, id := range s.queue {
		t := s.byID[id]
		if t == nil {
			continue
		}
		if t.NextAttemptAt.After(now) {
			if d := t.NextAttemptAt.Sub(now); d < wait {
				wait = d
			}
			continue
		}
		task = t
		break
	}
	if task == nil {
		return nil, wait
	}

	cred := s.pool.Active()
	if cred == nil {
		if d := s.pool.NextResetIn(); d > 0 && d < wait {
			wait = d
		}
		return nil, wait
	}

	s.removeFromQueueLocked(task.ID)
	size := task.FileSize
	if current, err := statSize(task.FilePath); err == nil && current > 0 {
		size = current
	}
	task.MarkUploading(cred.ProjectID, size, now)

	jobCtx, cancel := context.WithCancel(ctx)
	s.running = &runningTask{id: task.ID, cancel: cancel}
	return &uploadJob{task: task.Clone(), credential: cred, ctx: jobCtx, cancel: cancel}, 0
}

func (s *Scheduler) process(ctx context.Context, job *uploadJob) {
	defer job.cancel()
	id := job.task.ID
	logger.GetLogger().WithFields(map[string]interface{}{
		"task_id":    id,
		"path":       job.task.FilePath,
		"project_id": job.credential.ProjectID,
		"attempt":    job.task.RetryCount + 1,
	}).Info("Upload started")

	progress := func(sent, total int64) {
		s.mu.Lock()
		if t := s.byID[id]; t != nil {
			t.UpdateProgress(sent, total)
		}
		s.mu.Unlock()
	}
	metadata := s.metadata.Build(job.task.FilePath, s.now())
	result, err := s.uploader.Upload(job.ctx, job.task, job.credential, metadata, progress)
	s.finish(ctx, id, job.credential, result, err)
}

type followUp struct {
	event        string
	snapshot     *model.UploadTask
	completed    *model.UploadTask
	quotaProject string
	authProject  string
	keepFile     bool
}

// finish resolves the attempt to a terminal or retry state. Pool, history,
// notifier and deletion work runs after the lock is released.
func (s *Scheduler) finish(ctx context.Context, id string, cred *model.Credential, result *dto.UploadResult, err error) {
	s.mu.Lock()
	s.running = nil
	t := s.byID[id]
	if t == nil {
		s.mu.Unlock()
		return
	}
	now := s.now()
	var f followUp
	log := logger.GetLogger().WithField("task_id", id)

	switch {
	case t.CancelRequested && (err != nil || result == nil):
		t.MarkCancelled(now)
		f.event = dto.TaskEventCancelled
		log.Info("Upload cancelled")

	case err == nil:
		videoID := ""
		if result != nil {
			videoID = result.VideoID
		}
		t.MarkCompleted(videoID, now)
		s.uploaded[t.FilePath] = struct{}{}
		f.event = dto.TaskEventCompleted
		f.completed = t
		if t.CancelRequested {
			// the platform already published the video; keep the source file
			f.keepFile = true
			log.WithField("video_url", t.VideoURL).Warn("Upload finished before cancellation took effect")
		} else {
			log.WithField("video_url", t.VideoURL).Info("Upload completed")
		}

	case ctx.Err() != nil && errors.Is(err, model.ErrUploadCancelled):
		// shutting down; leave the task for the next run of the worker
		t.ReturnToPending("interrupted by shutdown", time.Time{})
		s.queue = append([]string{id}, s.queue...)

	default:
		class, ok := model.ClassOf(err)
		if !ok {
			class = model.ErrorClassTransientNetwork
		}
		msg := err.Error()
		log = log.WithField("error_class", class).WithField("error", err)

		switch class {
		case model.ErrorClassQuotaExceeded:
			t.ReturnToPending(msg, time.Time{})
			s.queue = append([]string{id}, s.queue...)
			f.quotaProject = cred.ProjectID
			log.Warn("Upload quota exceeded, task re-queued")

		case model.ErrorClassTransientNetwork, model.ErrorClassFileUnavailable:
			limit := s.opts.MaxRetries
			if class == model.ErrorClassFileUnavailable && s.opts.FileUnavailableRetries < limit {
				limit = s.opts.FileUnavailableRetries
			}
			t.RetryCount++
			if t.RetryCount <= limit {
				delay := utils.Backoff(s.opts.RetryBackoff, s.opts.RetryBackoffMax, t.RetryCount)
				t.ReturnToPending(msg, now.Add(delay))
				s.queue = append(s.queue, id)
				log.WithField("retry", t.RetryCount).WithField("backoff", delay.String()).Warn("Upload failed, will retry")
			} else {
				t.MarkError(msg, now)
				f.event = dto.TaskEventFailed
				log.WithField("retry", t.RetryCount).Error("Upload failed, retries exhausted")
			}

		case model.ErrorClassAuthExpired:
			t.MarkError(msg, now)
			f.event = dto.TaskEventFailed
			f.authProject = cred.ProjectID
			log.Error("Upload failed, credential needs re-authentication")

		default:
			t.MarkError(msg, now)
			f.event = dto.TaskEventFailed
			log.Error("Upload failed")
		}
	}
	if f.event != "" {
		f.snapshot = t.Clone()
	}
	var deleteInput *model.UploadTask
	if f.completed != nil && !f.keepFile && s.opts.DeleteAfterUpload && s.deleter != nil {
		deleteInput = t.Clone()
		s.deletions.Add(1)
	}
	s.mu.Unlock()

	if f.quotaProject != "" {
		s.pool.MarkQuotaExceeded(ctx, f.quotaProject)
	}
	if f.authProject != "" {
		s.pool.MarkAuthExpired(f.authProject)
	}
	if f.completed != nil && s.history != nil {
		entry := &model.UploadHistory{
			FilePath:   f.snapshot.FilePath,
			FileSize:   f.snapshot.FileSize,
			VideoID:    f.snapshot.VideoID,
			ProjectID:  f.snapshot.ProjectID,
			UploadedAt: now.UTC(),
		}
		if err := s.history.Record(ctx, entry); err != nil {
			logger.GetLogger().WithField("task_id", id).WithField("error", err).Warn("failed to record upload history")
		}
	}
	if deleteInput != nil {
		go s.runDeletion(ctx, t, deleteInput)
	}
	if f.snapshot != nil {
		s.notify(ctx, f.event, f.snapshot)
	}
}

func (s *Scheduler) runDeletion(ctx context.Context, t *model.UploadTask, input *model.UploadTask) {
	defer s.deletions.Done()
	outcome := s.deleter.Delete(ctx, input)

	s.mu.Lock()
	defer s.mu.Unlock()
	t.DeleteAttempted = true
	t.DeleteSucceeded = outcome.Succeeded
	if outcome.Succeeded {
		t.DeleteError = nil
	} else {
		msg := outcome.LastError
		t.DeleteError = &msg
	}
}
