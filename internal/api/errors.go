package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bull/docchat/internal/domain"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// respondWithServiceError maps a service error onto a status code and error payload.
func respondWithServiceError(c *gin.Context, err error) {
	var (
		vErr    *domain.ValidationError
		loadErr *domain.LoadError
		procErr *domain.ProcessingError
		genErr  *domain.GenerationError
	)
	switch {
	case errors.As(err, &vErr):
		var details interface{}
		if vErr.Field != "" {
			details = gin.H{"field": vErr.Field}
		}
		RespondWithBadRequest(c, vErr.Message, details)
	case errors.Is(err, domain.ErrNotFound):
		RespondWithNotFound(c, "Document not found")
	case errors.As(err, &loadErr):
		RespondWithError(c, http.StatusUnprocessableEntity, "load_failed", loadErr.Error(), nil)
	case errors.As(err, &procErr):
		RespondWithError(c, http.StatusUnprocessableEntity, "processing_failed", procErr.Error(), nil)
	case errors.As(err, &genErr):
		RespondWithError(c, http.StatusBadGateway, "generation_failed", genErr.Error(),
			gin.H{"status_code": genErr.StatusCode})
	case isBodyTooLarge(err):
		RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large", "File too large", nil)
	default:
		RespondWithInternalError(c, "Internal server error", nil)
	}
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	// multipart wraps some read errors with %v
	return err != nil && strings.Contains(err.Error(), "request body too large")
}
