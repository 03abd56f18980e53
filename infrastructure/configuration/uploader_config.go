package configuration

import (
	"os"
	"strings"
	"time"

	"autouploader/domain/model"
)

// UploaderSettings holds everything the upload engine reads from config.
// The engine never writes settings back.
type UploaderSettings struct {
	TitleTemplate       string `json:"title_template" mapstructure:"title_template"`
	Description         string `json:"description" mapstructure:"description"`
	Tags                string `json:"tags" mapstructure:"tags"`
	Privacy             string `json:"privacy" mapstructure:"privacy"`
	CategoryID          string `json:"category_id" mapstructure:"category_id"`
	DeleteAfterUpload   bool   `json:"delete_after_upload" mapstructure:"delete_after_upload"`
	CheckExistingFiles  bool   `json:"check_existing_files" mapstructure:"check_existing_files"`
	MaxRetries          int    `json:"max_retries" mapstructure:"max_retries"`
	UploadLimitDuration int    `json:"upload_limit_duration" mapstructure:"upload_limit_duration"`
	DeleteRetryCount    int    `json:"delete_retry_count" mapstructure:"delete_retry_count"`
	DeleteRetryDelay    int    `json:"delete_retry_delay" mapstructure:"delete_retry_delay"`

	DebounceSeconds        int      `json:"debounce_seconds" mapstructure:"debounce_seconds"`
	PollIntervalSeconds    int      `json:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
	RetryBackoffSeconds    int      `json:"retry_backoff_seconds" mapstructure:"retry_backoff_seconds"`
	RetryBackoffMaxSeconds int      `json:"retry_backoff_max_seconds" mapstructure:"retry_backoff_max_seconds"`
	FileUnavailableRetries int      `json:"file_unavailable_retries" mapstructure:"file_unavailable_retries"`
	ChunkSizeMB            int      `json:"chunk_size_mb" mapstructure:"chunk_size_mb"`
	AdaptiveChunks         bool     `json:"adaptive_chunks" mapstructure:"adaptive_chunks"`
	MaxChunkResumes        int      `json:"max_chunk_resumes" mapstructure:"max_chunk_resumes"`
	ConnectTimeoutSeconds  int      `json:"connect_timeout_seconds" mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds     int      `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	QuotaResetPolicy       string   `json:"quota_reset_policy" mapstructure:"quota_reset_policy"`
	VideoExtensions        []string `json:"video_extensions" mapstructure:"video_extensions"`
}

const (
	QuotaResetPolicyDuration        = "duration"
	QuotaResetPolicyPacificMidnight = "pacific_midnight"
)

var validPrivacy = map[string]bool{"public": true, "private": true, "unlisted": true}

// DefaultUploaderSettings mirrors what a fresh install ships with
func DefaultUploaderSettings() UploaderSettings {
	return UploaderSettings{
		TitleTemplate:          "Gameplay video - {filename}",
		Description:            "Automatically uploaded gameplay video",
		Tags:                   "gameplay, gaming, auto-upload",
		Privacy:                "unlisted",
		CategoryID:             "20",
		DeleteAfterUpload:      true,
		CheckExistingFiles:     true,
		MaxRetries:             3,
		UploadLimitDuration:    24,
		DeleteRetryCount:       5,
		DeleteRetryDelay:       5,
		DebounceSeconds:        2,
		PollIntervalSeconds:    1,
		RetryBackoffSeconds:    2,
		RetryBackoffMaxSeconds: 60,
		FileUnavailableRetries: 2,
		ChunkSizeMB:            1,
		AdaptiveChunks:         true,
		MaxChunkResumes:        3,
		ConnectTimeoutSeconds:  30,
		ReadTimeoutSeconds:     120,
		QuotaResetPolicy:       QuotaResetPolicyDuration,
		VideoExtensions: []string{
			".mp4", ".avi", ".mov", ".wmv", ".mkv", ".flv", ".webm", ".m4v",
			".mpg", ".mpeg", ".3gp", ".3g2", ".ts", ".mts", ".m2ts", ".vob",
			".ogv", ".rm", ".rmvb", ".asf", ".divx", ".f4v",
		},
	}
}

// GetUploaderSettings returns the loaded settings with env overrides applied
func GetUploaderSettings() UploaderSettings {
	s := C.Uploader
	s.TitleTemplate = getConfigValue(s.TitleTemplate, "UPLOADER_TITLE_TEMPLATE", DefaultUploaderSettings().TitleTemplate)
	s.Privacy = strings.ToLower(getConfigValue(s.Privacy, "UPLOADER_PRIVACY", DefaultUploaderSettings().Privacy))
	if len(s.VideoExtensions) == 0 {
		s.VideoExtensions = DefaultUploaderSettings().VideoExtensions
	}
	return s
}

// Validate reports every invalid field at once.
func (s UploaderSettings) Validate() error {
	var bad []string
	if strings.TrimSpace(s.TitleTemplate) == "" {
		bad = append(bad, "title_template")
	}
	if !validPrivacy[strings.ToLower(s.Privacy)] {
		bad = append(bad, "privacy")
	}
	if s.MaxRetries < 0 {
		bad = append(bad, "max_retries")
	}
	if s.UploadLimitDuration <= 0 {
		bad = append(bad, "upload_limit_duration")
	}
	if s.DeleteRetryCount < 1 {
		bad = append(bad, "delete_retry_count")
	}
	if s.DeleteRetryDelay < 0 {
		bad = append(bad, "delete_retry_delay")
	}
	if s.DebounceSeconds < 0 {
		bad = append(bad, "debounce_seconds")
	}
	if s.PollIntervalSeconds <= 0 {
		bad = append(bad, "poll_interval_seconds")
	}
	if s.RetryBackoffSeconds < 0 || s.RetryBackoffMaxSeconds < s.RetryBackoffSeconds {
		bad = append(bad, "retry_backoff_seconds")
	}
	if s.ChunkSizeMB <= 0 {
		bad = append(bad, "chunk_size_mb")
	}
	if s.MaxChunkResumes < 0 {
		bad = append(bad, "max_chunk_resumes")
	}
	switch s.QuotaResetPolicy {
	case QuotaResetPolicyDuration, QuotaResetPolicyPacificMidnight:
	default:
		bad = append(bad, "quota_reset_policy")
	}
	if len(bad) > 0 {
		return &model.ConfigurationError{Reason: "invalid uploader settings", Fields: bad}
	}
	return nil
}

func (s UploaderSettings) Debounce() time.Duration {
	return time.Duration(s.DebounceSeconds) * time.Second
}

func (s UploaderSettings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

func (s UploaderSettings) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffSeconds) * time.Second
}

func (s UploaderSettings) RetryBackoffMax() time.Duration {
	return time.Duration(s.RetryBackoffMaxSeconds) * time.Second
}

func (s UploaderSettings) QuotaWindow() time.Duration {
	return time.Duration(s.UploadLimitDuration) * time.Hour
}

func (s UploaderSettings) DeleteDelay() time.Duration {
	return time.Duration(s.DeleteRetryDelay) * time.Second
}

func (s UploaderSettings) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSeconds) * time.Second
}

func (s UploaderSettings) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// getConfigValue prefers the environment, then config, then the default
func getConfigValue(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}
