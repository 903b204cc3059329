package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Category  string `json:"category"`
	Retryable bool   `json:"retryable"`
}

// Classify maps an error from the service layer to an HTTP status and category.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrDuplicateID):
		return http.StatusConflict, "duplicate_id"
	case errors.Is(err, service.ErrPersistence):
		return http.StatusInternalServerError, "persistence_failed"
	}

	status := http.StatusBadGateway
	category := "upstream_error"
	switch {
	case errors.Is(err, service.ErrUpstreamUnavailable):
		status, category = http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.Is(err, service.ErrUpstreamEmptyResult):
		category = "upstream_empty_result"
	case errors.Is(err, service.ErrUpstreamSchema):
		category = "upstream_schema"
	}

	// Stage failures keep the upstream status but report the stage.
	switch {
	case errors.Is(err, service.ErrAnalysisFailed):
		return status, "analysis_failed"
	case errors.Is(err, service.ErrQuantificationFailed):
		return status, "quantification_failed"
	case category != "upstream_error":
		return status, category
	}
	return http.StatusInternalServerError, "internal"
}

// ErrorHandler renders errors attached with c.Error as JSON and turns panics into 500s.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", "panic", rec, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:    "Internal Server Error",
					Category: "internal",
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, category := Classify(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError && category == "internal" {
			msg = "Internal Server Error"
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
		} else {
			log.Warn("request rejected", "path", c.FullPath(), "status", status, "error", err)
		}

		c.JSON(status, ErrorResponse{
			Error:     msg,
			Category:  category,
			Retryable: service.IsRetryable(err),
		})
	}
}
