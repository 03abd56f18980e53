package youtube

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"

	"autouploader/domain/model"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	quotaReasons = map[string]bool{
		"quotaExceeded":       true,
		"uploadLimitExceeded": true,
		"dailyLimitExceeded":  true,
	}
	authReasons = map[string]bool{
		"authError":          true,
		"invalidCredentials": true,
		"unauthorized":       true,
	}
	transientReasons = map[string]bool{
		"rateLimitExceeded":     true,
		"userRateLimitExceeded": true,
		"backendError":          true,
		"internalError":         true,
	}
)

// classifyResponse consumes the body of a non-success response.
func classifyResponse(resp *http.Response) *model.UploadError {
	err := googleapi.CheckResponse(resp)
	if err == nil {
		return model.NewUploadError(model.ErrorClassFatalRemote, "unexpected response status "+resp.Status, nil)
	}
	return classifyError(err)
}

// classifyError maps any failure from the remote platform or the local file
// onto the shared error taxonomy.
func classifyError(err error) *model.UploadError {
	if err == nil {
		return nil
	}

	var ue *model.UploadError
	if errors.As(err, &ue) {
		return ue
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyAPIError(gerr)
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil && rerr.Response.StatusCode >= http.StatusInternalServerError {
			return model.NewUploadError(model.ErrorClassTransientNetwork, "token endpoint unavailable", err)
		}
		return model.NewUploadError(model.ErrorClassAuthExpired, "token refresh rejected", err)
	}

	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return model.NewUploadError(model.ErrorClassFileUnavailable, "source file unavailable", err)
	}

	if isNetworkError(err) {
		return model.NewUploadError(model.ErrorClassTransientNetwork, "network error", err)
	}

	return model.NewUploadError(model.ErrorClassTransientNetwork, "unexpected upload failure", err)
}

func classifyAPIError(gerr *googleapi.Error) *model.UploadError {
	for _, item := range gerr.Errors {
		switch {
		case quotaReasons[item.Reason]:
			return model.NewUploadError(model.ErrorClassQuotaExceeded, item.Reason, gerr)
		case authReasons[item.Reason]:
			return model.NewUploadError(model.ErrorClassAuthExpired, item.Reason, gerr)
		case transientReasons[item.Reason]:
			return model.NewUploadError(model.ErrorClassTransientNetwork, item.Reason, gerr)
		}
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		return model.NewUploadError(model.ErrorClassAuthExpired, "unauthorized", gerr)
	case gerr.Code == http.StatusTooManyRequests,
		gerr.Code == http.StatusRequestTimeout,
		gerr.Code >= http.StatusInternalServerError:
		return model.NewUploadError(model.ErrorClassTransientNetwork, http.StatusText(gerr.Code), gerr)
	default:
		return model.NewUploadError(model.ErrorClassFatalRemote, "rejected by platform", gerr)
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sessionGone(err error) *model.UploadError {
	ue := model.NewUploadError(model.ErrorClassTransientNetwork, "upload session expired", err)
	ue.Restart = true
	return ue
}

// resumable reports whether the failure can be retried within the same session.
func resumable(err error) bool {
	var ue *model.UploadError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.Class == model.ErrorClassTransientNetwork && !ue.Restart
}
