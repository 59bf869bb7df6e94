package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
	"github.com/xxxsen/docast/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, apperrors.ErrInvalid):
		response.Error(c, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		response.Error(c, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, apperrors.ErrTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "too_large", "file too large")
	case errors.Is(err, apperrors.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "ai_unavailable", "ai not configured")
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
