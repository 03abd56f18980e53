package youtube

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"autouploader/domain/model"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	DefaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"

	chunkAlign       = 256 * 1024
	defaultChunkSize = 1024 * 1024
	largeChunkSize   = 4 * 1024 * 1024
	largeFileSize    = 100 * 1024 * 1024
)

// Options tunes the transfer. Zero values fall back to sane defaults.
type Options struct {
	UploadURL       string
	APIEndpoint     string
	ChunkSize       int64
	AdaptiveChunks  bool
	MaxChunkResumes int
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
}

// Client uploads videos and lists channels for a credential project
type Client struct {
	opts      Options
	transport http.RoundTripper
}

func NewYouTubeClient(opts Options) *Client {
	if opts.UploadURL == "" {
		opts.UploadURL = DefaultUploadURL
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 2 * time.Minute
	}
	if opts.MaxChunkResumes < 0 {
		opts.MaxChunkResumes = 0
	}
	return &Client{
		opts: opts,
		transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			ResponseHeaderTimeout: opts.ReadTimeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// httpClient authorizes requests with the credential's token source.
func (c *Client) httpClient(ctx context.Context, credential *model.Credential) *http.Client {
	base := &http.Client{Transport: c.transport}
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), credential.TokenSource)
	// 308 is the resumable protocol's "keep going" answer, not a redirect.
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

// chunkSizeFor picks a chunk size aligned to the protocol's 256 KiB granularity
func (c *Client) chunkSizeFor(fileSize int64) int64 {
	size := c.opts.ChunkSize
	if c.opts.AdaptiveChunks && fileSize > largeFileSize && size < largeChunkSize {
		size = largeChunkSize
	}
	if rem := size % chunkAlign; rem != 0 {
		size += chunkAlign - rem
	}
	return size
}

// ListChannels returns the channels owned by the credential's account
func (c *Client) ListChannels(ctx context.Context, credential *model.Credential) ([]model.Channel, error) {
	if credential == nil {
		return nil, model.NewUploadError(model.ErrorClassAuthExpired, "no credential", nil)
	}
	opts := []option.ClientOption{option.WithHTTPClient(c.httpClient(ctx, credential))}
	if c.opts.APIEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.opts.APIEndpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	resp, err := service.Channels.List([]string{"snippet", "contentDetails"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err)
	}

	channels := make([]model.Channel, 0, len(resp.Items))
	for _, item := range resp.Items {
		channel := model.Channel{ID: item.Id}
		if item.Snippet != nil {
			channel.Title = item.Snippet.Title
			if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Default != nil {
				channel.ThumbnailURL = item.Snippet.Thumbnails.Default.Url
			}
		}
		if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
			channel.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
		}
		channels = append(channels, channel)
	}
	return channels, nil
}
