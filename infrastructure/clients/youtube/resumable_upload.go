package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"autouploader/domain/dto"
	"autouploader/domain/model"
	"autouploader/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"google.golang.org/api/youtube/v3"
)

const videoURLPrefix = "https://youtu.be/"

type sessionParams struct {
	UploadType        string `url:"uploadType"`
	Part              string `url:"part"`
	NotifySubscribers bool   `url:"notifySubscribers"`
}

// Upload sends the task's file through a resumable session. A transient
// chunk failure resumes from the last acknowledged byte; a lost session is
// reported with Restart set so the caller starts over.
func (c *Client) Upload(
	ctx context.Context,
	task *model.UploadTask,
	credential *model.Credential,
	metadata dto.UploadMetadata,
	progress dto.ProgressFunc,
) (*dto.UploadResult, error) {
	if credential == nil || credential.TokenSource == nil {
		return nil, model.NewUploadError(model.ErrorClassAuthExpired, "no credential for upload", nil)
	}
	if progress == nil {
		progress = func(int64, int64) {}
	}

	file, err := os.Open(task.FilePath)
	if err != nil {
		return nil, model.NewUploadError(model.ErrorClassFileUnavailable, "cannot open source file", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, model.NewUploadError(model.ErrorClassFileUnavailable, "cannot stat source file", err)
	}
	// The declared length is the size the scheduler snapshotted for the task,
	// so task progress and the session agree even if the file keeps growing.
	total := task.FileSize
	if total <= 0 {
		total = info.Size()
	}
	if total == 0 {
		return nil, model.NewUploadError(model.ErrorClassFileUnavailable, "source file is empty", model.ErrEmptyFile)
	}
	if info.Size() < total {
		return nil, model.NewUploadError(model.ErrorClassFileUnavailable, "source file is smaller than recorded",
			fmt.Errorf("expected %d bytes, found %d", total, info.Size()))
	}

	if err := ctx.Err(); err != nil {
		return nil, model.ErrUploadCancelled
	}

	client := c.httpClient(ctx, credential)
	session, err := c.openSession(ctx, client, metadata, total)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, model.ErrUploadCancelled
		}
		return nil, err
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"task_id":    task.ID,
		"project_id": credential.ProjectID,
		"size":       total,
	}).Info("Upload session opened")

	video, err := c.transfer(ctx, client, session, file, total, progress)
	if err != nil {
		return nil, err
	}
	if video.Id == "" {
		return nil, model.NewUploadError(model.ErrorClassFatalRemote, "platform returned no video id", nil)
	}

	return &dto.UploadResult{VideoID: video.Id, VideoURL: videoURLPrefix + video.Id}, nil
}

func (c *Client) openSession(ctx context.Context, client *http.Client, metadata dto.UploadMetadata, total int64) (string, error) {
	params, err := query.Values(sessionParams{
		UploadType:        "resumable",
		Part:              "snippet,status",
		NotifySubscribers: metadata.NotifySubs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode upload params: %w", err)
	}

	body, err := json.Marshal(buildVideo(metadata))
	if err != nil {
		return "", fmt.Errorf("failed to encode video metadata: %w", err)
	}

	contentType := metadata.ContentType
	if contentType == "" {
		contentType = "video/*"
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout+c.opts.ReadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.opts.UploadURL+"?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(total, 10))
	req.Header.Set("X-Upload-Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", context.Canceled
		}
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", classifyResponse(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", model.NewUploadError(model.ErrorClassFatalRemote, "upload session has no location", nil)
	}
	return location, nil
}

func buildVideo(metadata dto.UploadMetadata) *youtube.Video {
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       metadata.Title,
			Description: metadata.Description,
			Tags:        metadata.Tags,
			CategoryId:  metadata.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           metadata.Privacy,
			SelfDeclaredMadeForKids: metadata.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
}

func (c *Client) transfer(
	ctx context.Context,
	client *http.Client,
	session string,
	file *os.File,
	total int64,
	progress dto.ProgressFunc,
) (*youtube.Video, error) {
	chunkSize := c.chunkSizeFor(total)
	buf := make([]byte, chunkSize)
	var offset int64
	resumes := 0

	for {
		// Cancellation is only honoured between chunks.
		if ctx.Err() != nil {
			return nil, model.ErrUploadCancelled
		}

		n := chunkSize
		if remaining := total - offset; remaining < n {
			n = remaining
		}
		read, err := file.ReadAt(buf[:n], offset)
		if int64(read) < n {
			if err == nil || errors.Is(err, io.EOF) {
				err = fmt.Errorf("file shrank to %d bytes", offset+int64(read))
			}
			return nil, model.NewUploadError(model.ErrorClassFileUnavailable, "source file changed during upload", err)
		}

		video, acked, err := c.putChunk(ctx, client, session, buf[:n], offset, total)
		if err == nil {
			if video != nil {
				progress(total, total)
				return video, nil
			}
			offset = acked
			progress(offset, total)
			continue
		}

		if !resumable(err) || resumes >= c.opts.MaxChunkResumes {
			return nil, err
		}
		resumes++
		logger.GetLogger().WithFields(map[string]interface{}{
			"error":  err,
			"offset": offset,
			"resume": resumes,
		}).Warn("Chunk failed, querying upload status")

		video, acked, err = c.queryStatus(ctx, client, session, total)
		if err != nil {
			if !resumable(err) {
				return nil, err
			}
			continue
		}
		if video != nil {
			progress(total, total)
			return video, nil
		}
		offset = acked
		progress(offset, total)
	}
}

func (c *Client) putChunk(
	ctx context.Context,
	client *http.Client,
	session string,
	chunk []byte,
	offset, total int64,
) (*youtube.Video, int64, error) {
	contentRange := fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total)
	return c.send(ctx, client, session, bytes.NewReader(chunk), int64(len(chunk)), contentRange)
}

// queryStatus asks the platform how many bytes it has persisted.
func (c *Client) queryStatus(ctx context.Context, client *http.Client, session string, total int64) (*youtube.Video, int64, error) {
	return c.send(ctx, client, session, http.NoBody, 0, fmt.Sprintf("bytes */%d", total))
}

func (c *Client) send(
	ctx context.Context,
	client *http.Client,
	session string,
	body io.Reader,
	length int64,
	contentRange string,
) (*youtube.Video, int64, error) {
	// An in-flight chunk is never aborted by cancellation, only by its timeout.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ConnectTimeout+c.opts.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, session, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build chunk request: %w", err)
	}
	req.ContentLength = length
	req.Header.Set("Content-Range", contentRange)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPermanentRedirect:
		acked, perr := parseRange(resp.Header.Get("Range"))
		if perr != nil {
			return nil, 0, model.NewUploadError(model.ErrorClassTransientNetwork, "malformed range header", perr)
		}
		return nil, acked, nil
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		video := &youtube.Video{}
		if err := json.NewDecoder(resp.Body).Decode(video); err != nil {
			return nil, 0, model.NewUploadError(model.ErrorClassTransientNetwork, "failed to decode upload response", err)
		}
		return video, 0, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, 0, sessionGone(fmt.Errorf("session returned %s", resp.Status))
	default:
		return nil, 0, classifyResponse(resp)
	}
}

// parseRange turns "bytes=0-1048575" into the next offset to send.
// A missing header means nothing has been persisted yet.
func parseRange(header string) (int64, error) {
	if header == "" {
		return 0, nil
	}
	rng := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(rng, "-", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("unexpected range %q", header)
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected range %q: %w", header, err)
	}
	return end + 1, nil
}
