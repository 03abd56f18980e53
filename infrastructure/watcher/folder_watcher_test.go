package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testExtensions = []string{".mp4", ".mkv"}

type knownSet struct {
	mu    sync.Mutex
	paths map[string]bool
}

func (k *knownSet) add(paths ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, p := range paths {
		k.paths[p] = true
	}
}

func (k *knownSet) known(path string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.paths[path]
}

func newTestWatcher(debounce time.Duration) (*FolderWatcher, *knownSet) {
	k := &knownSet{paths: map[string]bool{}}
	w := NewFolderWatcher(Options{
		Debounce:     debounce,
		PollInterval: 10 * time.Millisecond,
		Extensions:   testExtensions,
	}, k.known)
	return w, k
}

func writeFile(t *testing.T, path string, size int) {
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
}

func expectEvent(t *testing.T, w *FolderWatcher, timeout time.Duration) string {
	select {
	case path := <-w.Events():
		return path
	case <-time.After(timeout):
		t.Fatal("expected a file event")
		return ""
	}
}

func expectNoEvent(t *testing.T, w *FolderWatcher, wait time.Duration) {
	select {
	case path := <-w.Events():
		t.Fatalf("unexpected event for %s", path)
	case <-time.After(wait):
	}
}

func TestFolderWatcher_WaitsForSizeToSettle(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(150 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir, true))
	defer w.Stop()

	path := filepath.Join(dir, "recording.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, err := f.Write(make([]byte, 1024))
		require.NoError(t, err)
		select {
		case p := <-w.Events():
			t.Fatalf("file %s reported while still growing", p)
		case <-time.After(20 * time.Millisecond):
		}
	}
	require.NoError(t, f.Close())

	assert.Equal(t, path, expectEvent(t, w, 2*time.Second))
	expectNoEvent(t, w, 300*time.Millisecond)
}

func TestFolderWatcher_IgnoresExistingFilesWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	writeFile(t, old, 100)

	w, _ := newTestWatcher(30 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir, false))
	defer w.Stop()

	fresh := filepath.Join(dir, "fresh.mkv")
	writeFile(t, fresh, 100)
	writeFile(t, filepath.Join(dir, "notes.txt"), 100)

	assert.Equal(t, fresh, expectEvent(t, w, 2*time.Second))
	expectNoEvent(t, w, 200*time.Millisecond)
}

func TestFolderWatcher_ReportsExistingFilesWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	writeFile(t, old, 100)

	w, _ := newTestWatcher(30 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir, true))
	defer w.Stop()

	assert.Equal(t, old, expectEvent(t, w, 2*time.Second))
}

func TestFolderWatcher_DropsFilesDeletedBeforeSettling(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(200 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir, true))
	defer w.Stop()

	path := filepath.Join(dir, "short.mp4")
	writeFile(t, path, 100)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	expectNoEvent(t, w, 400*time.Millisecond)
	assert.Nil(t, w.LastError())
}

func TestFolderWatcher_NeverReportsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(20 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir, true))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "empty.mp4"), 0)
	expectNoEvent(t, w, 200*time.Millisecond)
}

func TestFolderWatcher_UnreadableFolderReportedOnce(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "captures")
	require.NoError(t, os.Mkdir(dir, 0o755))

	w, _ := newTestWatcher(20 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir, true))
	defer w.Stop()

	require.NoError(t, os.Remove(dir))
	require.Eventually(t, func() bool { return w.LastError() != nil }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, w.failureEpisodes())
	assert.True(t, w.Running())

	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Eventually(t, func() bool { return w.LastError() == nil }, time.Second, 10*time.Millisecond)
}

func TestFolderWatcher_ScanSkipsKnownFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mkv")
	writeFile(t, a, 10)
	writeFile(t, b, 10)
	writeFile(t, filepath.Join(dir, "empty.mp4"), 0)

	w, k := newTestWatcher(20 * time.Millisecond)

	found, err := w.Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, found)

	k.add(found...)
	found, err = w.Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFolderWatcher_ScanWithoutFolder(t *testing.T) {
	w, _ := newTestWatcher(time.Millisecond)
	_, err := w.Scan(context.Background(), "")
	assert.Error(t, err)
}

func TestFolderWatcher_MonitorDoesNotReemitScannedFiles(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(30 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir, false))
	defer w.Stop()

	path := filepath.Join(dir, "clip.mp4")
	writeFile(t, path, 10)
	found, err := w.Scan(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []string{path}, found)

	expectNoEvent(t, w, 200*time.Millisecond)
}
