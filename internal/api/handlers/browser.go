package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Sessions is the browser session factory as seen by operators
type Sessions interface {
	GetStats() map[string]interface{}
	Health() map[string]interface{}
	CloseAll() int
}

// BrowserHandler handles browser session management requests
type BrowserHandler struct {
	sessions Sessions
	logger   *logrus.Logger
}

// NewBrowserHandler creates a new browser handler
func NewBrowserHandler(sessions Sessions, logger *logrus.Logger) *BrowserHandler {
	return &BrowserHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// GetStats handles browser session statistics request
// @Summary Get browser session statistics
// @Tags Browser
// @Produce json
// @Security AdminKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.ErrorResponse
// @Router /api/v1/browser/stats [get]
func (h *BrowserHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"stats":     h.sessions.GetStats(),
		"health":    h.sessions.Health(),
		"timestamp": time.Now(),
	})
}

// Restart terminates every open browser session
// @Summary Restart browser sessions
// @Description Closes every running Chrome session. Queries using them fail and can be resubmitted.
// @Tags Browser
// @Produce json
// @Security AdminKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.ErrorResponse
// @Router /api/v1/browser/restart [post]
func (h *BrowserHandler) Restart(c *gin.Context) {
	requestID := c.GetString("request_id")
	closed := h.sessions.CloseAll()

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"closed":     closed,
	}).Warn("Browser sessions restarted by operator")

	c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "Browser sessions terminated",
		"closed":    closed,
		"success":   true,
		"stats":     h.sessions.GetStats(),
		"timestamp": time.Now(),
	})
}

// GetHealth handles browser health check request
// @Summary Get browser health
// @Tags Browser
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/browser/health [get]
func (h *BrowserHandler) GetHealth(c *gin.Context) {
	health := h.sessions.Health()

	httpStatus := http.StatusOK
	if health["status"] == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, map[string]interface{}{
		"health":    health,
		"timestamp": time.Now(),
	})
}
