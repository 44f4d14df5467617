package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/adresconsulta/eps-api/internal/artifacts"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ResultFiles reads saved result artifacts
type ResultFiles interface {
	Open(ctx context.Context, name string, kind artifacts.Kind) ([]byte, error)
}

// ArtifactHandler serves result downloads
type ArtifactHandler struct {
	files  ResultFiles
	logger *logrus.Logger
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(files ResultFiles, logger *logrus.Logger) *ArtifactHandler {
	return &ArtifactHandler{files: files, logger: logger}
}

// Get serves one artifact of a completed query
// @Summary Download a result artifact
// @Tags Artifacts
// @Produce octet-stream
// @Param name path string true "Artifact name from the job's artifact_name"
// @Param kind path string true "html, json, txt or screenshot"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/artifacts/{name}/{kind} [get]
func (h *ArtifactHandler) Get(c *gin.Context) {
	kind, err := artifacts.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	name := c.Param("name")
	data, err := h.files.Open(c.Request.Context(), name, kind)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name+"."+kind.Ext()))
	c.Data(http.StatusOK, kind.ContentType(), data)
}
