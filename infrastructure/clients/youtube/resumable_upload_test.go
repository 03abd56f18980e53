package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"autouploader/domain/dto"
	"autouploader/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeUploadServer implements just enough of the resumable protocol.
type fakeUploadServer struct {
	mu         sync.Mutex
	t          *testing.T
	received   bytes.Buffer
	total      int64
	puts       int
	statusHits int
	// failPut returns a status code to use for the n-th PUT (1-based), or 0.
	failPut  func(n int) int
	openCode int
	openBody string
	query    string
	auth     string
}

func (f *fakeUploadServer) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload":
		f.query = r.URL.RawQuery
		f.auth = r.Header.Get("Authorization")
		if f.openCode != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.openCode)
			_, _ = io.WriteString(w, f.openBody)
			return
		}
		total, err := strconv.ParseInt(r.Header.Get("X-Upload-Content-Length"), 10, 64)
		require.NoError(f.t, err)
		f.total = total
		w.Header().Set("Location", "http://"+r.Host+"/session/1")
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && r.URL.Path == "/session/1":
		contentRange := r.Header.Get("Content-Range")
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(contentRange, "bytes */") {
			f.statusHits++
			f.writeProgress(w)
			return
		}
		f.puts++
		if f.failPut != nil {
			if code := f.failPut(f.puts); code != 0 {
				w.WriteHeader(code)
				return
			}
		}
		var start, end, total int64
		_, err := fmt.Sscanf(contentRange, "bytes %d-%d/%d", &start, &end, &total)
		require.NoError(f.t, err)
		require.Equal(f.t, int64(f.received.Len()), start, "chunk must start at acknowledged offset")
		f.received.Write(body)
		if int64(f.received.Len()) == f.total {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"vid123"}`)
			return
		}
		f.writeProgress(w)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeUploadServer) writeProgress(w http.ResponseWriter) {
	if f.received.Len() > 0 {
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", f.received.Len()-1))
	}
	w.WriteHeader(http.StatusPermanentRedirect)
}

func newTestClient(t *testing.T, f *fakeUploadServer) (*Client, *httptest.Server) {
	f.t = t
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	client := NewYouTubeClient(Options{
		UploadURL:       srv.URL + "/upload",
		ChunkSize:       chunkAlign,
		MaxChunkResumes: 2,
		ConnectTimeout:  time.Second,
		ReadTimeout:     2 * time.Second,
	})
	return client, srv
}

func writeVideo(t *testing.T, size int) (string, []byte) {
	data := bytes.Repeat([]byte("0123456789abcdef"), size/16+1)[:size]
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path, data
}

func testCredential() *model.Credential {
	return &model.Credential{
		ProjectID:   "p1",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}),
	}
}

func testMetadata() dto.UploadMetadata {
	return dto.UploadMetadata{Title: "clip", Privacy: "unlisted", CategoryID: "20"}
}

func TestUpload_SendsAllChunks(t *testing.T) {
	f := &fakeUploadServer{}
	client, _ := newTestClient(t, f)
	path, data := writeVideo(t, 2*chunkAlign+1000)
	task := model.NewUploadTask(path, int64(len(data)), time.Now())

	var sent []int64
	res, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), func(s, total int64) {
		assert.Equal(t, int64(len(data)), total)
		sent = append(sent, s)
	})

	require.NoError(t, err)
	assert.Equal(t, "vid123", res.VideoID)
	assert.Equal(t, "https://youtu.be/vid123", res.VideoURL)
	assert.Equal(t, data, f.received.Bytes())
	assert.Equal(t, 3, f.puts)
	assert.Equal(t, []int64{chunkAlign, 2 * chunkAlign, int64(len(data))}, sent)
	assert.Contains(t, f.query, "uploadType=resumable")
	assert.Contains(t, f.query, "part=snippet%2Cstatus")
	assert.Equal(t, "Bearer tok", f.auth)
}

func TestUpload_ResumesFromAcknowledgedOffset(t *testing.T) {
	f := &fakeUploadServer{failPut: func(n int) int {
		if n == 2 {
			return http.StatusServiceUnavailable
		}
		return 0
	}}
	client, _ := newTestClient(t, f)
	path, data := writeVideo(t, 2*chunkAlign+10)
	task := model.NewUploadTask(path, int64(len(data)), time.Now())

	res, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), nil)

	require.NoError(t, err)
	assert.Equal(t, "vid123", res.VideoID)
	assert.Equal(t, data, f.received.Bytes())
	assert.Equal(t, 1, f.statusHits)
	assert.Equal(t, 4, f.puts)
}

func TestUpload_ResumeBudgetExhausted(t *testing.T) {
	f := &fakeUploadServer{failPut: func(n int) int { return http.StatusBadGateway }}
	client, _ := newTestClient(t, f)
	path, data := writeVideo(t, chunkAlign+10)
	task := model.NewUploadTask(path, int64(len(data)), time.Now())

	_, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), nil)

	class, ok := model.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrorClassTransientNetwork, class)
	assert.Equal(t, 3, f.puts)
	assert.Equal(t, 2, f.statusHits)
}

func TestUpload_SessionGoneRequiresRestart(t *testing.T) {
	f := &fakeUploadServer{failPut: func(n int) int { return http.StatusGone }}
	client, _ := newTestClient(t, f)
	path, data := writeVideo(t, 100)
	task := model.NewUploadTask(path, int64(len(data)), time.Now())

	_, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), nil)

	var ue *model.UploadError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, model.ErrorClassTransientNetwork, ue.Class)
	assert.True(t, ue.Restart)
	assert.Equal(t, 0, f.statusHits)
}

func TestUpload_ClassifiesSessionOpenFailures(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		expected model.ErrorClass
	}{
		{
			name:     "upload limit",
			code:     http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"limit","errors":[{"reason":"uploadLimitExceeded","message":"limit"}]}}`,
			expected: model.ErrorClassQuotaExceeded,
		},
		{
			name:     "quota exceeded",
			code:     http.StatusForbidden,
			body:     `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`,
			expected: model.ErrorClassQuotaExceeded,
		},
		{
			name:     "unauthorized",
			code:     http.StatusUnauthorized,
			body:     `{"error":{"code":401,"message":"Invalid Credentials"}}`,
			expected: model.ErrorClassAuthExpired,
		},
		{
			name:     "backend error",
			code:     http.StatusServiceUnavailable,
			body:     `{"error":{"code":503,"message":"backend"}}`,
			expected: model.ErrorClassTransientNetwork,
		},
		{
			name:     "invalid metadata",
			code:     http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"bad title","errors":[{"reason":"invalidTitle"}]}}`,
			expected: model.ErrorClassFatalRemote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUploadServer{openCode: tt.code, openBody: tt.body}
			client, _ := newTestClient(t, f)
			path, data := writeVideo(t, 100)
			task := model.NewUploadTask(path, int64(len(data)), time.Now())

			_, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), nil)

			class, ok := model.ClassOf(err)
			require.True(t, ok, "error should be classified: %v", err)
			assert.Equal(t, tt.expected, class)
		})
	}
}

func TestUpload_CancelledBetweenChunks(t *testing.T) {
	f := &fakeUploadServer{}
	client, _ := newTestClient(t, f)
	path, data := writeVideo(t, 3*chunkAlign)
	task := model.NewUploadTask(path, int64(len(data)), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := client.Upload(ctx, task, testCredential(), testMetadata(), func(int64, int64) { cancel() })

	assert.ErrorIs(t, err, model.ErrUploadCancelled)
	assert.Equal(t, 1, f.puts)
}

func TestUpload_MissingFile(t *testing.T) {
	client := NewYouTubeClient(Options{})
	task := model.NewUploadTask(filepath.Join(t.TempDir(), "gone.mp4"), 10, time.Now())

	_, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), nil)

	class, ok := model.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrorClassFileUnavailable, class)
}

func TestChunkSizeFor(t *testing.T) {
	client := NewYouTubeClient(Options{ChunkSize: defaultChunkSize, AdaptiveChunks: true})
	assert.Equal(t, int64(defaultChunkSize), client.chunkSizeFor(10*1024*1024))
	assert.Equal(t, int64(largeChunkSize), client.chunkSizeFor(200*1024*1024))

	odd := NewYouTubeClient(Options{ChunkSize: 1000})
	assert.Equal(t, int64(chunkAlign), odd.chunkSizeFor(5000))
}

func TestParseRange(t *testing.T) {
	offset, err := parseRange("bytes=0-1048575")
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), offset)

	offset, err = parseRange("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)

	_, err = parseRange("garbage")
	assert.Error(t, err)
}

func TestUpload_DeclaresRecordedTaskSize(t *testing.T) {
	f := &fakeUploadServer{}
	client, _ := newTestClient(t, f)
	path, data := writeVideo(t, chunkAlign+500)
	task := model.NewUploadTask(path, int64(len(data)), time.Now())

	// the file keeps growing after the task size was recorded
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = fh.Write(bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	var totals []int64
	res, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), func(_, total int64) {
		totals = append(totals, total)
	})

	require.NoError(t, err)
	assert.Equal(t, "vid123", res.VideoID)
	assert.Equal(t, int64(len(data)), f.total)
	assert.Equal(t, data, f.received.Bytes())
	for _, total := range totals {
		assert.Equal(t, task.FileSize, total)
	}
}

func TestUpload_FileShrankBelowRecordedSize(t *testing.T) {
	f := &fakeUploadServer{}
	client, _ := newTestClient(t, f)
	path, data := writeVideo(t, 2000)
	task := model.NewUploadTask(path, int64(len(data))+100, time.Now())

	_, err := client.Upload(context.Background(), task, testCredential(), testMetadata(), nil)

	class, ok := model.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrorClassFileUnavailable, class)
	assert.Empty(t, f.query, "no session should be opened")
}
