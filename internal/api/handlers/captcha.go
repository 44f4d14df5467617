package handlers

import (
	"net/http"

	"github.com/adresconsulta/eps-api/internal/captcha"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Prompts is the operator side of CAPTCHAs parked by running queries
type Prompts interface {
	Pending() []captcha.Challenge
	Image(id string) ([]byte, error)
	Answer(id, text string) error
	Cancel(id string) error
}

// CaptchaHandler lets an operator answer CAPTCHAs over HTTP
type CaptchaHandler struct {
	prompts Prompts
	logger  *logrus.Logger
}

// NewCaptchaHandler creates a new CAPTCHA handler
func NewCaptchaHandler(prompts Prompts, logger *logrus.Logger) *CaptchaHandler {
	return &CaptchaHandler{prompts: prompts, logger: logger}
}

// List returns the challenges waiting for an answer
// @Summary List pending CAPTCHAs
// @Description Challenges are keyed by job ID, so a job whose captcha_id is set has an entry here
// @Tags CAPTCHA
// @Produce json
// @Success 200 {array} models.CaptchaChallenge
// @Router /api/v1/captchas [get]
func (h *CaptchaHandler) List(c *gin.Context) {
	pending := h.prompts.Pending()
	out := make([]models.CaptchaChallenge, 0, len(pending))
	for _, ch := range pending {
		out = append(out, models.CaptchaChallenge{
			ID:        ch.ID,
			ImageURL:  "/api/v1/captchas/" + ch.ID + "/image",
			CreatedAt: ch.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Image serves the captured CAPTCHA
// @Summary Get CAPTCHA image
// @Tags CAPTCHA
// @Produce png
// @Param id path string true "Challenge ID"
// @Success 200 {file} file
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/captchas/{id}/image [get]
func (h *CaptchaHandler) Image(c *gin.Context) {
	img, err := h.prompts.Image(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", img)
}

// Answer submits the operator's transcription
// @Summary Answer a CAPTCHA
// @Tags CAPTCHA
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param request body models.CaptchaAnswerRequest true "Transcription"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/captchas/{id}/answer [post]
func (h *CaptchaHandler) Answer(c *gin.Context) {
	var req models.CaptchaAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request", err.Error(), "INVALID_REQUEST")
		return
	}

	id := c.Param("id")
	if err := h.prompts.Answer(id, req.Text); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id":   c.GetString("request_id"),
		"challenge_id": id,
	}).Info("CAPTCHA answered by operator")
	c.Status(http.StatusNoContent)
}

// Cancel declines a CAPTCHA; its query fails with a cancellation message
// @Summary Cancel a CAPTCHA
// @Tags CAPTCHA
// @Param id path string true "Challenge ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/captchas/{id} [delete]
func (h *CaptchaHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.prompts.Cancel(id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id":   c.GetString("request_id"),
		"challenge_id": id,
	}).Info("CAPTCHA cancelled by operator")
	c.Status(http.StatusNoContent)
}
