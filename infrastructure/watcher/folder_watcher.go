package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"autouploader/domain/model"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"
	"autouploader/infrastructure/utils"

	"github.com/fsnotify/fsnotify"
)

type Options struct {
	Debounce     time.Duration
	PollInterval time.Duration
	Extensions   []string
	// Buffer is the capacity of the events channel.
	Buffer int
}

// KnownFunc reports whether the scheduler already tracks path in a way that
// forbids re-emitting it.
type KnownFunc func(path string) bool

type candidate struct {
	size  int64
	since time.Time
}

// FolderWatcher combines filesystem notifications with a periodic poll and
// emits a path once its size has stayed put for a full debounce window.
type FolderWatcher struct {
	opts   Options
	known  KnownFunc
	events chan string

	mu       sync.Mutex
	root     string
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	emitted  map[string]bool
	baseline map[string]bool
	pending  map[string]*candidate
	claimed  map[string]bool
	lastErr  error
	failing  bool
	episodes int
}

func NewFolderWatcher(opts Options, known KnownFunc) *FolderWatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if known == nil {
		known = func(string) bool { return false }
	}
	return &FolderWatcher{
		opts:     opts,
		known:    known,
		events:   make(chan string, opts.Buffer),
		emitted:  map[string]bool{},
		baseline: map[string]bool{},
		pending:  map[string]*candidate{},
		claimed:  map[string]bool{},
	}
}

var _ repository.IFolderWatcher = (*FolderWatcher)(nil)

func (w *FolderWatcher) Events() <-chan string { return w.events }

func (w *FolderWatcher) Folder() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

func (w *FolderWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// LastError is the current monitoring failure, nil once the folder is readable again.
func (w *FolderWatcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Start begins monitoring root. A running watcher is stopped first.
func (w *FolderWatcher) Start(ctx context.Context, root string, checkExisting bool) error {
	if root == "" {
		return model.NewConfigurationError("watch folder is empty", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return model.NewConfigurationError("invalid watch folder", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return model.NewConfigurationError("watch folder is not accessible", err)
	}
	if !info.IsDir() {
		return model.NewConfigurationError("watch folder is not a directory", nil)
	}

	w.Stop()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Filesystem notifications unavailable, polling only")
		fsw = nil
	} else if err := fsw.Add(abs); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Cannot watch folder for notifications, polling only")
		_ = fsw.Close()
		fsw = nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	if abs != w.root {
		w.emitted = map[string]bool{}
	}
	w.root = abs
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	w.pending = map[string]*candidate{}
	w.baseline = map[string]bool{}
	w.lastErr = nil
	w.failing = false
	if !checkExisting {
		if entries, err := os.ReadDir(abs); err == nil {
			for _, e := range entries {
				if !e.IsDir() {
					w.baseline[filepath.Join(abs, e.Name())] = true
				}
			}
		}
	}
	done := w.done
	baseline := len(w.baseline)
	w.mu.Unlock()

	logger.GetLogger().WithFields(map[string]interface{}{
		"folder":         abs,
		"check_existing": checkExisting,
		"baseline":       baseline,
	}).Info("Folder monitoring started")

	go w.run(runCtx, fsw, done)
	return nil
}

// Stop halts monitoring and waits for the loop to exit.
func (w *FolderWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.running = false
	w.mu.Unlock()

	cancel()
	<-done
	logger.GetLogger().WithField("folder", w.Folder()).Info("Folder monitoring stopped")
}

func (w *FolderWatcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if fsw != nil {
		defer fsw.Close()
		fsEvents = fsw.Events
		fsErrors = fsw.Errors
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.observe(ev.Name)
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			logger.GetLogger().WithField("error", err).Warn("Filesystem notification error")
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// observe starts tracking a path reported by a notification.
func (w *FolderWatcher) observe(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.eligibleLocked(path) {
		w.trackLocked(path, info.Size(), time.Now())
	}
}

func (w *FolderWatcher) eligibleLocked(path string) bool {
	if !utils.HasExtension(path, w.opts.Extensions) {
		return false
	}
	if w.baseline[path] || w.emitted[path] || w.claimed[path] {
		return false
	}
	return !w.known(path)
}

func (w *FolderWatcher) trackLocked(path string, size int64, now time.Time) {
	c, ok := w.pending[path]
	if !ok {
		w.pending[path] = &candidate{size: size, since: now}
		return
	}
	if c.size != size {
		c.size = size
		c.since = now
	}
}

// poll lists the folder, then promotes candidates that have been stable
// for a full debounce window.
func (w *FolderWatcher) poll(ctx context.Context) {
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()

	entries, err := os.ReadDir(root)
	if err != nil {
		w.reportFailure(err)
		return
	}
	w.clearFailure()

	now := time.Now()
	var ready []string

	w.mu.Lock()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if _, tracked := w.pending[path]; tracked || !w.eligibleLocked(path) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		w.trackLocked(path, info.Size(), now)
	}

	for path, c := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			// deleted before it settled
			delete(w.pending, path)
			continue
		}
		size := info.Size()
		switch {
		case size < c.size:
			// shrinking means it was truncated or rewritten; start over on the next poll
			delete(w.pending, path)
		case size != c.size:
			c.size = size
			c.since = now
		case size > 0 && now.Sub(c.since) >= w.opts.Debounce:
			delete(w.pending, path)
			if w.emitted[path] || w.known(path) {
				continue
			}
			w.emitted[path] = true
			ready = append(ready, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		logger.GetLogger().WithField("path", path).Info("New stable file detected")
		select {
		case w.events <- path:
		case <-ctx.Done():
			return
		}
	}
}

func (w *FolderWatcher) reportFailure(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failing {
		return
	}
	w.failing = true
	w.episodes++
	w.lastErr = fmt.Errorf("folder %s unreadable: %w", w.root, err)
	logger.GetLogger().WithField("error", err).WithField("folder", w.root).Error("Folder monitoring failure")
}

func (w *FolderWatcher) clearFailure() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.failing {
		return
	}
	w.failing = false
	w.lastErr = nil
	logger.GetLogger().WithField("folder", w.root).Info("Folder readable again")
}

// Scan samples every unknown video file twice, one debounce apart, and returns
// the ones whose size held. Files still changing are left to the monitor.
func (w *FolderWatcher) Scan(ctx context.Context, root string) ([]string, error) {
	if root == "" {
		root = w.Folder()
	}
	if root == "" {
		return nil, model.NewConfigurationError("no folder selected", model.ErrNotWatching)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, model.NewConfigurationError("invalid scan folder", err)
	}

	first, err := w.sample(abs)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, nil
	}

	// The monitor leaves sampled paths alone until the scan decides on them.
	w.mu.Lock()
	for path := range first {
		w.claimed[path] = true
		delete(w.pending, path)
	}
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		for path := range first {
			delete(w.claimed, path)
		}
		w.mu.Unlock()
	}()

	timer := time.NewTimer(w.opts.Debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	now := time.Now()
	var stable []string
	w.mu.Lock()
	monitoring := w.running && abs == w.root
	for path, size := range first {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() == size && size > 0 {
			if abs == w.root {
				w.emitted[path] = true
			}
			stable = append(stable, path)
			continue
		}
		if monitoring && !w.emitted[path] && !w.baseline[path] {
			w.trackLocked(path, info.Size(), now)
		}
	}
	w.mu.Unlock()

	sort.Strings(stable)
	logger.GetLogger().WithFields(map[string]interface{}{
		"folder":   abs,
		"found":    len(first),
		"stable":   len(stable),
		"unstable": len(first) - len(stable),
	}).Info("Folder scan finished")
	return stable, nil
}

func (w *FolderWatcher) sample(root string) (map[string]int64, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.NewConfigurationError("scan folder does not exist", err)
		}
		return nil, fmt.Errorf("failed to read folder %s: %w", root, err)
	}
	sizes := map[string]int64{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if !utils.HasExtension(path, w.opts.Extensions) || w.known(path) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sizes[path] = info.Size()
	}
	return sizes, nil
}

func (w *FolderWatcher) failureEpisodes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.episodes
}
