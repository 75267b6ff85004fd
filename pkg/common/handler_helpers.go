package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"go.uber.org/zap"
)

// HandleServiceError handles service errors with consistent patterns.
// Returns true if an error was handled (and response was sent), false otherwise.
//
// Usage:
//
//	result, err := h.service.GetCase(ctx, id)
//	if common.HandleServiceError(c, err, "failed to get case") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), appErr.Message, zap.Error(appErr.Err))
		}
		AppErrorResponse(c, appErr)
		return true
	}

	logger.ErrorContext(c.Request.Context(), fallbackMessage,
		zap.Error(err),
	)

	ErrorResponse(c, http.StatusInternalServerError, fallbackMessage)
	return true
}

// RequireParam reads a non-empty path parameter.
// Returns the value and true on success, or sends a 400 response and returns false.
func RequireParam(c *gin.Context, paramName, displayName string) (string, bool) {
	value := c.Param(paramName)
	if value == "" {
		ErrorResponse(c, http.StatusBadRequest, displayName+" is required")
		return "", false
	}
	return value, true
}

// ParseIntQuery reads an optional integer query parameter bounded by [min, max].
// Missing values yield def.
func ParseIntQuery(c *gin.Context, name string, def, min, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		ErrorResponse(c, http.StatusBadRequest, fmt.Sprintf("%s must be an integer between %d and %d", name, min, max))
		return 0, false
	}
	return v, true
}

// BindJSON binds JSON request body and sends error response on failure.
// Returns true on success, false on failure (response already sent).
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// BindQuery binds query parameters and sends error response on failure.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
