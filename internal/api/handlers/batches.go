package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/adresconsulta/eps-api/internal/spreadsheet"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UploadField is the multipart field carrying the spreadsheet
const UploadField = "archivo"

// BatchFiles reads consolidated batch summaries
type BatchFiles interface {
	OpenBatch(ctx context.Context, batchID string) ([]byte, error)
}

// BatchHandler handles spreadsheet batches
type BatchHandler struct {
	queries   services.QueryServiceInterface
	files     BatchFiles
	maxUpload int64
	logger    *logrus.Logger
}

// NewBatchHandler creates a new batch handler; maxUpload caps the request body
func NewBatchHandler(queries services.QueryServiceInterface, files BatchFiles, maxUpload int64, logger *logrus.Logger) *BatchHandler {
	return &BatchHandler{
		queries:   queries,
		files:     files,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Create handles a spreadsheet upload
// @Summary Start a batch from a spreadsheet
// @Description Upload a .xlsx or .csv file with tipo_identificacion and numero_identificacion columns. Rows are queried one after another.
// @Tags Batches
// @Accept multipart/form-data
// @Produce json
// @Param archivo formData file true "Spreadsheet (.xlsx or .csv)"
// @Success 202 {object} models.BatchAccepted
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 415 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /api/v1/batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	if h.maxUpload > 0 {
		if c.Request.ContentLength > h.maxUpload {
			h.tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	header, err := c.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		abort(c, http.StatusBadRequest, "Missing file",
			fmt.Sprintf("multipart field %q is required", UploadField), "MISSING_FILE")
		return
	}

	if !spreadsheet.Supported(header.Filename) {
		respondError(c, h.logger, fmt.Errorf("%w: %s", spreadsheet.ErrUnsupportedFormat, header.Filename))
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	rows, err := spreadsheet.Read(f, header.Filename)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	batch, err := h.queries.SubmitBatch(c.Request.Context(), rows)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"batch_id":   batch.ID,
		"file":       header.Filename,
		"rows":       batch.Total,
	}).Info("Batch queued")

	statusURL := "/api/v1/batches/" + batch.ID
	c.Header("Location", statusURL)
	c.JSON(http.StatusAccepted, models.BatchAccepted{
		BatchID:   batch.ID,
		Total:     batch.Total,
		StatusURL: statusURL,
		Timestamp: time.Now(),
	})
}

func (h *BatchHandler) tooLarge(c *gin.Context) {
	abort(c, http.StatusRequestEntityTooLarge, "File too large",
		fmt.Sprintf("uploads are limited to %d bytes", h.maxUpload), "FILE_TOO_LARGE")
}

// Get handles a batch status poll
// @Summary Get batch status
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} models.BatchJob
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.queries.Batch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// Download serves the consolidated outcomes of a finished batch
// @Summary Download batch results
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {array} models.RowOutcome
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/batches/{id}/download [get]
func (h *BatchHandler) Download(c *gin.Context) {
	id := c.Param("id")
	batch, err := h.queries.Batch(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !batch.State.Terminal() {
		abort(c, http.StatusConflict, "Batch still running", batch.Message, "BATCH_RUNNING")
		return
	}

	data, err := h.files.OpenBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "lote_"+id+".json"))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
