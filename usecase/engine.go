package usecase

import (
	"context"
	"errors"
	"sync"

	"autouploader/domain/dto"
	"autouploader/domain/model"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"
)

// IEngine is everything the status layer can ask of the uploader
type IEngine interface {
	StartWatching(root string) error
	StopWatching()
	ScanOnce(ctx context.Context) (int, error)

	ListTasks() []dto.TaskSnapshot
	CancelTask(ctx context.Context, id string) dto.CancelTaskResult
	ClearCompleted() int

	ListCredentialProjects() []model.CredentialProject
	AddCredentialProject(ctx context.Context, material model.CredentialMaterial) (string, error)
	SelectCredentialProject(ctx context.Context, id string) dto.SelectProjectResult
	ListChannels(ctx context.Context) ([]model.Channel, error)
	SelectChannel(id string) error

	RecentUploads(ctx context.Context, limit int) ([]model.UploadHistory, error)
	Status() dto.EngineStatus
}

// Engine glues the watcher, scheduler and credential pool together.
type Engine struct {
	watcher       repository.IFolderWatcher
	scheduler     *Scheduler
	pool          *CredentialPool
	store         repository.ICredentialStore
	channels      repository.IChannelClient
	history       repository.IUploadHistory
	checkExisting bool

	mu      sync.Mutex
	baseCtx context.Context
	folder  string
}

func NewEngine(
	watcher repository.IFolderWatcher,
	scheduler *Scheduler,
	pool *CredentialPool,
	store repository.ICredentialStore,
	channels repository.IChannelClient,
	checkExisting bool,
) *Engine {
	return &Engine{
		watcher:       watcher,
		scheduler:     scheduler,
		pool:          pool,
		store:         store,
		channels:      channels,
		checkExisting: checkExisting,
		baseCtx:       context.Background(),
	}
}

// WithHistory exposes recent uploads through the engine (fluent)
func (e *Engine) WithHistory(history repository.IUploadHistory) *Engine {
	e.history = history
	return e
}

// LoadCredentials registers every project the store knows about.
func (e *Engine) LoadCredentials(ctx context.Context) (int, error) {
	if e.store == nil {
		return 0, nil
	}
	stored, err := e.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, sc := range stored {
		e.pool.Add(ctx, sc.Project, sc.TokenSource)
	}
	e.scheduler.Wake()
	return len(stored), nil
}

// Run drives the upload worker and forwards watcher events until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.pump(ctx)
	}()

	err := e.scheduler.Run(ctx)
	e.watcher.Stop()
	wg.Wait()
	return err
}

func (e *Engine) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-e.watcher.Events():
			e.enqueue(ctx, path)
		}
	}
}

func (e *Engine) enqueue(ctx context.Context, path string) bool {
	_, err := e.scheduler.Enqueue(ctx, path)
	switch {
	case err == nil:
		return true
	case errors.Is(err, model.ErrAlreadyQueued), errors.Is(err, model.ErrAlreadyUploaded):
		logger.GetLogger().WithField("path", path).WithField("reason", err.Error()).Debug("File skipped")
	default:
		logger.GetLogger().WithField("path", path).WithField("error", err).Warn("Failed to queue file")
	}
	return false
}

func (e *Engine) StartWatching(root string) error {
	e.mu.Lock()
	ctx := e.baseCtx
	e.mu.Unlock()

	if err := e.watcher.Start(ctx, root, e.checkExisting); err != nil {
		return err
	}
	e.mu.Lock()
	e.folder = root
	e.mu.Unlock()
	return nil
}

func (e *Engine) StopWatching() {
	e.watcher.Stop()
}

// ScanOnce queues every stable unknown file of the current folder and
// returns how many tasks were created.
func (e *Engine) ScanOnce(ctx context.Context) (int, error) {
	e.mu.Lock()
	root := e.folder
	e.mu.Unlock()
	if root == "" {
		return 0, model.ErrNotWatching
	}

	paths, err := e.watcher.Scan(ctx, root)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, p := range paths {
		if e.enqueue(ctx, p) {
			queued++
		}
	}
	logger.GetLogger().WithField("folder", root).WithField("queued", queued).Info("Folder scan finished")
	return queued, nil
}

// SetFolder remembers a folder for ScanOnce without starting monitoring.
func (e *Engine) SetFolder(root string) {
	e.mu.Lock()
	e.folder = root
	e.mu.Unlock()
}

func (e *Engine) ListTasks() []dto.TaskSnapshot {
	tasks := e.scheduler.List()
	out := make([]dto.TaskSnapshot, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, dto.ToTaskSnapshot(t))
	}
	return out
}

func (e *Engine) CancelTask(ctx context.Context, id string) dto.CancelTaskResult {
	err := e.scheduler.Cancel(ctx, id)
	switch {
	case err == nil:
		return dto.CancelSucceeded
	case errors.Is(err, model.ErrTaskNotFound):
		return dto.CancelNotFound
	default:
		return dto.CancelInvalidState
	}
}

func (e *Engine) ClearCompleted() int {
	return e.scheduler.ClearCompleted()
}

func (e *Engine) ListCredentialProjects() []model.CredentialProject {
	return e.pool.List()
}

func (e *Engine) AddCredentialProject(ctx context.Context, material model.CredentialMaterial) (string, error) {
	if e.store == nil {
		return "", model.NewConfigurationError("no credential store configured", nil)
	}
	stored, err := e.store.Add(ctx, material)
	if err != nil {
		return "", err
	}
	e.pool.Add(ctx, stored.Project, stored.TokenSource)
	e.scheduler.Wake()
	logger.GetLogger().WithField("project_id", stored.Project.ID).Info("Credential project added")
	return stored.Project.ID, nil
}

func (e *Engine) SelectCredentialProject(ctx context.Context, id string) dto.SelectProjectResult {
	err := e.pool.RotateManually(ctx, id)
	switch {
	case err == nil:
		e.scheduler.Wake()
		return dto.SelectProjectSucceeded
	case errors.Is(err, model.ErrProjectNeedsAuth):
		return dto.SelectProjectNeedsAuth
	default:
		return dto.SelectProjectUnknown
	}
}

// ListChannels lists channels of the active project.
func (e *Engine) ListChannels(ctx context.Context) ([]model.Channel, error) {
	cred := e.pool.Active()
	if cred == nil {
		return nil, model.ErrNoActiveCredential
	}
	channels, err := e.channels.ListChannels(ctx, cred)
	if err != nil {
		if class, ok := model.ClassOf(err); ok && class == model.ErrorClassAuthExpired {
			e.pool.MarkAuthExpired(cred.ProjectID)
		}
		return nil, err
	}
	return channels, nil
}

func (e *Engine) SelectChannel(id string) error {
	return e.pool.SelectChannel(id)
}

func (e *Engine) RecentUploads(ctx context.Context, limit int) ([]model.UploadHistory, error) {
	if e.history == nil {
		return []model.UploadHistory{}, nil
	}
	return e.history.ListRecent(ctx, limit)
}

func (e *Engine) Status() dto.EngineStatus {
	limitReached, resetAt := e.pool.LimitStatus()
	counts := e.scheduler.Counts()

	e.mu.Lock()
	folder := e.folder
	e.mu.Unlock()
	if f := e.watcher.Folder(); f != "" {
		folder = f
	}

	status := dto.EngineStatus{
		Monitoring:      e.watcher.Running(),
		Folder:          folder,
		LimitReached:    limitReached,
		LimitResetAt:    resetAt,
		ActiveProjectID: e.pool.ActiveID(),
		Pending:         counts.Pending,
		Uploading:       counts.Uploading,
		Completed:       counts.Completed,
		Failed:          counts.Failed,
	}
	if err := e.watcher.LastError(); err != nil {
		status.WatcherError = err.Error()
	}
	return status
}
