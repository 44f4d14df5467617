package handlers

import (
	"net/http"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueryHandler handles single document queries
type QueryHandler struct {
	queries services.QueryServiceInterface
	logger  *logrus.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queries services.QueryServiceInterface, logger *logrus.Logger) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  logger,
	}
}

// Create handles a new query request
// @Summary Start an affiliation query
// @Description Queue a query against the ADRES portal. Poll the returned status URL until the job reaches completed or failed.
// @Tags Queries
// @Accept json
// @Produce json
// @Param request body models.QueryRequest true "Document to query"
// @Success 202 {object} models.QueryAccepted
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/queries [post]
func (h *QueryHandler) Create(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request", err.Error(), "INVALID_REQUEST")
		return
	}

	job, err := h.queries.Submit(c.Request.Context(), req.DocumentType, req.DocumentNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"job_id":     job.ID,
	}).Info("Query queued")

	statusURL := "/api/v1/queries/" + job.ID
	c.Header("Location", statusURL)
	c.JSON(http.StatusAccepted, models.QueryAccepted{
		JobID:     job.ID,
		State:     job.State,
		StatusURL: statusURL,
		Timestamp: time.Now(),
	})
}

// Get handles a status poll
// @Summary Get query status
// @Description Current state, progress and, once completed, the extracted record and download links
// @Tags Queries
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.QueryJob
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/queries/{id} [get]
func (h *QueryHandler) Get(c *gin.Context) {
	job, err := h.queries.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Delete removes a finished job record
// @Summary Delete a finished query
// @Tags Queries
// @Param id path string true "Job ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/queries/{id} [delete]
func (h *QueryHandler) Delete(c *gin.Context) {
	if err := h.queries.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
