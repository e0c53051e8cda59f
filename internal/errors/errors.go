package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codeberg.org/wavelink/server/internal/logger"
)

// for HTTP REST handlers:
//   - use errors.InternalError(), errors.BadRequest(), etc. for critical errors
//     these functions handle both logging and HTTP response automatically
//   - use logger.ErrorErr() only for non-critical errors where processing continues
//
// for services/registries/internal packages:
//   - return wrapped errors with context using fmt.Errorf("context: %w", err)
//   - let the caller (handler) decide how to log and respond

// BadRequest returns a 400 bad request error
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "invalid request"
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   CodeBadRequest,
		Message: message,
	})
}

// Unauthorized returns a 401 unauthorized error
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication required"
	}

	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   CodeUnauthorized,
		Message: message,
	})
}

// Forbidden returns a 403 forbidden error
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "permission denied"
	}

	c.JSON(http.StatusForbidden, ErrorResponse{
		Error:   CodeForbidden,
		Message: message,
	})
}

// NotFound returns a 404 not found error
func NotFound(c *gin.Context, resource string) {
	message := "resource not found"

	if resource != "" {
		message = resource + " not found"
	}

	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   CodeNotFound,
		Message: message,
	})
}

// Conflict returns a 409 conflict error
func Conflict(c *gin.Context, message string) {
	if message == "" {
		message = "resource conflict"
	}

	c.JSON(http.StatusConflict, ErrorResponse{
		Error:   CodeConflict,
		Message: message,
	})
}

// TooManyRequests returns a 429 too many requests error
func TooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "too many requests"
	}

	c.JSON(http.StatusTooManyRequests, ErrorResponse{
		Error:   CodeTooManyRequests,
		Message: message,
	})
}

// InternalError returns a 500 internal server error
func InternalError(c *gin.Context, message string, err error) {
	if message == "" {
		message = "an error occurred"
	}

	logger.ErrorErr(err, message,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"user_id", c.GetString("user_id"),
	)

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   CodeServerError,
		Message: message,
	})
}
