package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAntiCaptchaSolve(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "key", body["clientKey"])

		switch r.URL.Path {
		case "/createTask":
			task := body["task"].(map[string]interface{})
			assert.Equal(t, "ImageToTextTask", task["type"])
			assert.Equal(t, float64(1), task["numeric"])
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), task["body"])
			_, _ = w.Write([]byte(`{"errorId":0,"taskId":7}`))
		case "/getTaskResult":
			assert.Equal(t, float64(7), body["taskId"])
			if polls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"errorId":0,"status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"errorId":0,"status":"ready","solution":{"text":"48213"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	solver := NewAntiCaptcha(AntiCaptchaConfig{
		APIKey: "key", BaseURL: srv.URL, MaxPolls: 5, PollInterval: time.Millisecond,
	}, logger.Discard())

	text, err := solver.Solve(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "48213", text)
	assert.Equal(t, int32(3), polls.Load())
}

func TestAntiCaptchaFailures(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"errorId":1,"errorCode":"ERROR_KEY_DOES_NOT_EXIST","errorDescription":"bad key"}`))
		}))
		defer srv.Close()

		solver := NewAntiCaptcha(AntiCaptchaConfig{APIKey: "k", BaseURL: srv.URL}, logger.Discard())
		_, err := solver.Solve(context.Background(), []byte("img"))
		assert.ErrorIs(t, err, ErrSolverUnavailable)
		assert.Contains(t, err.Error(), "ERROR_KEY_DOES_NOT_EXIST")
	})

	t.Run("never ready", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/createTask" {
				_, _ = w.Write([]byte(`{"errorId":0,"taskId":1}`))
				return
			}
			_, _ = w.Write([]byte(`{"errorId":0,"status":"processing"}`))
		}))
		defer srv.Close()

		solver := NewAntiCaptcha(AntiCaptchaConfig{APIKey: "k", BaseURL: srv.URL, MaxPolls: 3, PollInterval: time.Millisecond}, logger.Discard())
		_, err := solver.Solve(context.Background(), []byte("img"))
		assert.ErrorIs(t, err, ErrSolverUnavailable)
		assert.Contains(t, err.Error(), "3 polls")
	})

	t.Run("missing key", func(t *testing.T) {
		solver := NewAntiCaptcha(AntiCaptchaConfig{}, logger.Discard())
		_, err := solver.Solve(context.Background(), []byte("img"))
		assert.ErrorIs(t, err, ErrSolverUnavailable)
	})
}

func TestSolveCaptchaSolve(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "base64", r.FormValue("method"))
			assert.Equal(t, "1", r.FormValue("numeric"))
			assert.Equal(t, "k", r.FormValue("key"))
			_, _ = w.Write([]byte(`{"status":1,"request":"555"}`))
		case "/res.php":
			assert.Equal(t, "555", r.URL.Query().Get("id"))
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"status":0,"request":"CAPCHA_NOT_READY"}`))
				return
			}
			_, _ = w.Write([]byte(`OK|7731`))
		}
	}))
	defer srv.Close()

	solver := NewSolveCaptcha(SolveCaptchaConfig{APIKey: "k", BaseURL: srv.URL, PollInterval: time.Millisecond}, logger.Discard())
	text, err := solver.Solve(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "7731", text)
}

func TestSolveCaptchaParsing(t *testing.T) {
	id, err := parseSubmitResponse([]byte("OK|123"))
	require.NoError(t, err)
	assert.Equal(t, "123", id)

	_, err = parseSubmitResponse([]byte(`{"status":0,"request":"ERROR_ZERO_BALANCE"}`))
	assert.ErrorIs(t, err, ErrSolverUnavailable)
	assert.Contains(t, err.Error(), "insufficient balance")

	text, err := parseStatusResponse([]byte("CAPCHA_NOT_READY"))
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = parseStatusResponse([]byte(`{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`))
	assert.ErrorIs(t, err, ErrSolverUnavailable)
	assert.Contains(t, err.Error(), "unsolvable")
}

func TestSolveCaptchaRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			_, _ = w.Write([]byte(`{"status":1,"request":"1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":0,"request":"CAPCHA_NOT_READY"}`))
	}))
	defer srv.Close()

	solver := NewSolveCaptcha(SolveCaptchaConfig{APIKey: "k", BaseURL: srv.URL, PollInterval: time.Second}, logger.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := solver.Solve(ctx, []byte("img"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
