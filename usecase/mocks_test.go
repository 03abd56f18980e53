package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autouploader/domain/dto"
	"autouploader/domain/model"
	"autouploader/domain/repository"
	"autouploader/usecase"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, task *model.UploadTask, credential *model.Credential, metadata dto.UploadMetadata, progress dto.ProgressFunc) (*dto.UploadResult, error) {
	args := m.Called(ctx, task, credential, metadata, progress)
	var res *dto.UploadResult
	if v := args.Get(0); v != nil {
		res = v.(*dto.UploadResult)
	}
	return res, args.Error(1)
}

type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) Delete(ctx context.Context, task *model.UploadTask) usecase.DeleteOutcome {
	args := m.Called(ctx, task)
	return args.Get(0).(usecase.DeleteOutcome)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Record(ctx context.Context, history *model.UploadHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockHistory) WasUploaded(ctx context.Context, filePath string, fileSize int64) (bool, error) {
	args := m.Called(ctx, filePath, fileSize)
	return args.Bool(0), args.Error(1)
}

func (m *MockHistory) ListRecent(ctx context.Context, limit int) ([]model.UploadHistory, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]model.UploadHistory), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event dto.TaskEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockQuotaCache struct {
	mock.Mock
}

func (m *MockQuotaCache) Save(ctx context.Context, state model.QuotaState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockQuotaCache) Load(ctx context.Context, projectID string) (*model.QuotaState, error) {
	args := m.Called(ctx, projectID)
	if v := args.Get(0); v != nil {
		return v.(*model.QuotaState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQuotaCache) Clear(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) LoadAll(ctx context.Context) ([]repository.StoredCredential, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]repository.StoredCredential), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) Add(ctx context.Context, material model.CredentialMaterial) (*repository.StoredCredential, error) {
	args := m.Called(ctx, material)
	if v := args.Get(0); v != nil {
		return v.(*repository.StoredCredential), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockChannelClient struct {
	mock.Mock
}

func (m *MockChannelClient) ListChannels(ctx context.Context, credential *model.Credential) ([]model.Channel, error) {
	args := m.Called(ctx, credential)
	if v := args.Get(0); v != nil {
		return v.([]model.Channel), args.Error(1)
	}
	return nil, args.Error(1)
}

func staticToken() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

// newPool registers authenticated projects in the given order.
func newPool(ids ...string) *usecase.CredentialPool {
	pool := usecase.NewCredentialPool(usecase.DurationResetPolicy{Window: time.Hour}, nil)
	for _, id := range ids {
		pool.Add(context.Background(), model.CredentialProject{ID: id, Name: id, Authenticated: true}, staticToken())
	}
	return pool
}

func writeVideo(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0o644))
	return path
}

func testMetadata() *usecase.MetadataBuilder {
	return usecase.NewMetadataBuilder(usecase.MetadataTemplate{TitleTemplate: "{filename}", Privacy: "private"})
}

func fastOptions() usecase.SchedulerOptions {
	return usecase.SchedulerOptions{
		MaxRetries:             3,
		FileUnavailableRetries: 2,
		RetryBackoff:           time.Millisecond,
		RetryBackoffMax:        5 * time.Millisecond,
		IdleWait:               20 * time.Millisecond,
	}
}

// startWorker runs the upload worker until the test ends and returns a stop
// func that blocks until it has exited.
func startWorker(t *testing.T, s *usecase.Scheduler) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}

func taskStatus(s *usecase.Scheduler, id string) model.TaskStatus {
	task, err := s.Get(id)
	if err != nil {
		return ""
	}
	return task.Status
}
