package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

func get(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := get(r, "/", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = get(r, "/", nil)
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestID(), Recovery(log))
	r.GET("/", func(*gin.Context) { panic("kaboom") })

	w := get(r, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "kaboom", hook.LastEntry().Data["panic"])
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{
		AllowedOrigins: []string{"https://operador.example"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Any("/", ok)

	w := get(r, "/", map[string]string{"Origin": "https://operador.example"})
	assert.Equal(t, "https://operador.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, "/", map[string]string{"Origin": "https://other.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Security())
	r.GET("/*any", ok)

	w := get(r, "/api/v1/queries", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotContains(t, w.Header().Get("Content-Security-Policy"), "unsafe-eval")

	w = get(r, "/swagger/index.html", nil)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "unsafe-eval")
}

func TestAdminAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", AdminAuth("s3cret"), ok)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/", map[string]string{"X-Admin-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, get(r, "/", map[string]string{"X-Admin-Key": "s3cret"}).Code)

	open := gin.New()
	open.GET("/", AdminAuth(""), ok)
	assert.Equal(t, http.StatusOK, get(open, "/", nil).Code)
}

func TestLoggerLevels(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	r := gin.New()
	r.Use(Logger(log))
	r.GET("/health", ok)
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/ok", ok)

	cases := map[string]logrus.Level{
		"/health":  logrus.DebugLevel,
		"/fail":    logrus.ErrorLevel,
		"/missing": logrus.WarnLevel,
		"/ok":      logrus.InfoLevel,
	}
	for path, level := range cases {
		get(r, path, nil)
		require.NotNil(t, hook.LastEntry(), path)
		assert.Equal(t, level, hook.LastEntry().Level, path)
		assert.Equal(t, path, hook.LastEntry().Data["path"])
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2, CleanupInterval: time.Minute})
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", ok)

	assert.Equal(t, http.StatusOK, get(r, "/", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/", nil).Code)

	w := get(r, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, 1, rl.GetStats()["active_clients"])
	assert.Equal(t, 1, rl.sweep(time.Now().Add(time.Second)))
	assert.Equal(t, 0, rl.GetStats()["active_clients"])
}

func TestRateLimiterCleanupStops(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Millisecond})
	rl.getLimiter("10.0.0.1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Cleanup(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rl.GetStats()["active_clients"] == 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
}
