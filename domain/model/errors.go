package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass is the failure taxonomy shared by every component.
type ErrorClass string

const (
	ErrorClassQuotaExceeded    ErrorClass = "quota_exceeded"
	ErrorClassAuthExpired      ErrorClass = "auth_expired"
	ErrorClassTransientNetwork ErrorClass = "transient_network"
	ErrorClassFileUnavailable  ErrorClass = "file_unavailable"
	ErrorClassFatalRemote      ErrorClass = "fatal_remote"
	ErrorClassConfiguration    ErrorClass = "configuration"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidTaskState   = errors.New("invalid task state")
	ErrAlreadyQueued      = errors.New("file already queued")
	ErrAlreadyUploaded    = errors.New("file already uploaded")
	ErrEmptyFile          = errors.New("file is empty")
	ErrUploadCancelled    = errors.New("upload cancelled")
	ErrNoActiveCredential = errors.New("no active credential project")
	ErrNotWatching        = errors.New("folder watcher is not running")
)

// UploadError is a classified failure returned by the uploader.
type UploadError struct {
	Class   ErrorClass
	Message string
	// Restart is set when the remote session is gone and the next attempt
	// has to begin from offset zero.
	Restart bool
	Err     error
}

func (e *UploadError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *UploadError) Unwrap() error { return e.Err }

func NewUploadError(class ErrorClass, message string, err error) *UploadError {
	return &UploadError{Class: class, Message: message, Err: err}
}

// ClassOf extracts the class of a classified error. Unclassified errors
// report ok=false.
func ClassOf(err error) (ErrorClass, bool) {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Class, true
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ErrorClassConfiguration, true
	}
	return "", false
}

// ConfigurationError rejects an invalid operator request or setting.
type ConfigurationError struct {
	Reason string
	Fields []string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error: " + e.Reason
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

var (
	ErrUnknownProject   = errors.New("unknown credential project")
	ErrProjectNeedsAuth = errors.New("credential project needs authentication")
)

func NewConfigurationError(reason string, err error) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Err: err}
}
