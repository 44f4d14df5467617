package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueryStats exposes job counters
type QueryStats interface {
	Stats() models.QueryMetrics
}

// StatsSource exposes a counter map
type StatsSource interface {
	Stats() map[string]interface{}
}

// SessionStats exposes browser session counters
type SessionStats interface {
	GetStats() map[string]interface{}
}

// MetricsHandler handles metrics requests
type MetricsHandler struct {
	queries  QueryStats
	sessions SessionStats
	captcha  StatsSource
	prompts  Prompts
	logger   *logrus.Logger
}

// NewMetricsHandler creates a new metrics handler; prompts may be nil
func NewMetricsHandler(queries QueryStats, sessions SessionStats, captcha StatsSource, prompts Prompts, logger *logrus.Logger) *MetricsHandler {
	return &MetricsHandler{
		queries:  queries,
		sessions: sessions,
		captcha:  captcha,
		prompts:  prompts,
		logger:   logger,
	}
}

// GetMetrics handles metrics request
// @Summary Get application metrics
// @Description Job, browser and CAPTCHA counters since start
// @Tags Metrics
// @Produce json
// @Success 200 {object} models.MetricsResponse
// @Router /metrics [get]
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	h.logger.WithField("request_id", c.GetString("request_id")).Debug("Getting application metrics")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	browserStats := h.sessions.GetStats()
	captchaStats := h.captcha.Stats()

	response := models.MetricsResponse{
		Queries: h.queries.Stats(),
		Browser: models.BrowserMetrics{
			ActiveSessions: getInt(browserStats, "active_sessions"),
			MaxSessions:    getInt(browserStats, "max_sessions"),
			TotalOpened:    getInt64(browserStats, "total_opened"),
			OpenFailures:   getInt64(browserStats, "open_failures"),
		},
		Captcha: models.CaptchaMetrics{
			Solved:    getInt64(captchaStats, "solved"),
			Manual:    getInt64(captchaStats, "manual"),
			Cancelled: getInt64(captchaStats, "cancelled"),
			TimedOut:  getInt64(captchaStats, "timed_out"),
		},
		System: models.SystemMetrics{
			MemoryUsage: float64(m.Alloc) / 1024 / 1024, // MB
			Goroutines:  runtime.NumGoroutine(),
		},
		Timestamp: time.Now(),
	}
	if h.prompts != nil {
		response.Captcha.Pending = len(h.prompts.Pending())
	}

	c.JSON(http.StatusOK, response)
}

func getInt(stats map[string]interface{}, key string) int {
	if v, ok := stats[key].(int); ok {
		return v
	}
	return 0
}

func getInt64(stats map[string]interface{}, key string) int64 {
	switch v := stats[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
