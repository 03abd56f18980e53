package http

import (
	"errors"
	"net/http"

	"autouploader/domain/model"

	"github.com/gin-gonic/gin"
)

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	var cfgErr *model.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotWatching), errors.Is(err, model.ErrNoActiveCredential):
		return http.StatusConflict
	case errors.Is(err, model.ErrTaskNotFound):
		return http.StatusNotFound
	}
	if class, ok := model.ClassOf(err); ok && class == model.ErrorClassAuthExpired {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

func respondError(ctx *gin.Context, message string, err error) {
	ctx.JSON(statusFor(err), gin.H{
		"error":   message,
		"message": err.Error(),
	})
}
