package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/adresconsulta/eps-api/internal/artifacts"
	"github.com/adresconsulta/eps-api/internal/captcha"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/adresconsulta/eps-api/internal/spreadsheet"
	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type apiError struct {
	status int
	title  string
	code   string
}

// errorTable maps domain errors to HTTP responses, first match wins
var errorTable = []struct {
	target error
	apiError
}{
	{utils.ErrInvalidDocumentType, apiError{http.StatusBadRequest, "Invalid document type", "INVALID_DOCUMENT_TYPE"}},
	{utils.ErrInvalidDocumentNumber, apiError{http.StatusBadRequest, "Invalid document number", "INVALID_DOCUMENT_NUMBER"}},
	{services.ErrJobNotFound, apiError{http.StatusNotFound, "Query not found", "JOB_NOT_FOUND"}},
	{services.ErrBatchNotFound, apiError{http.StatusNotFound, "Batch not found", "BATCH_NOT_FOUND"}},
	{services.ErrJobRunning, apiError{http.StatusConflict, "Query still running", "JOB_RUNNING"}},
	{services.ErrEmptyBatch, apiError{http.StatusBadRequest, "Empty batch", "EMPTY_BATCH"}},
	{services.ErrShuttingDown, apiError{http.StatusServiceUnavailable, "Service unavailable", "SHUTTING_DOWN"}},
	{artifacts.ErrArtifactNotFound, apiError{http.StatusNotFound, "Artifact not found", "ARTIFACT_NOT_FOUND"}},
	{artifacts.ErrInvalidKind, apiError{http.StatusBadRequest, "Invalid artifact kind", "INVALID_ARTIFACT_KIND"}},
	{captcha.ErrChallengeNotFound, apiError{http.StatusNotFound, "CAPTCHA not found", "CAPTCHA_NOT_FOUND"}},
	{captcha.ErrEmptyAnswer, apiError{http.StatusBadRequest, "Empty CAPTCHA answer", "EMPTY_ANSWER"}},
	{spreadsheet.ErrUnsupportedFormat, apiError{http.StatusUnsupportedMediaType, "Unsupported file", "UNSUPPORTED_FORMAT"}},
	{spreadsheet.ErrEmptySheet, apiError{http.StatusUnprocessableEntity, "Invalid spreadsheet", "EMPTY_SHEET"}},
	{spreadsheet.ErrMissingColumns, apiError{http.StatusUnprocessableEntity, "Invalid spreadsheet", "MISSING_COLUMNS"}},
	{spreadsheet.ErrNoValidRows, apiError{http.StatusUnprocessableEntity, "Invalid spreadsheet", "NO_VALID_ROWS"}},
}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR"}
}

// respondError writes the mapped error body and logs server-side failures
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.Request.URL.Path,
			"error":      err.Error(),
		}).Error("Request failed")
	}
	abort(c, e.status, e.title, err.Error(), e.code)
}

func abort(c *gin.Context, status int, title, message, code string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:     title,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
