package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/sirupsen/logrus"
)

const antiCaptchaBaseURL = "https://api.anti-captcha.com"

// AntiCaptchaConfig configures the Anti-Captcha client
type AntiCaptchaConfig struct {
	APIKey       string
	BaseURL      string
	MaxPolls     int
	PollInterval time.Duration
	HTTPTimeout  time.Duration
}

// AntiCaptcha solves image CAPTCHAs through the Anti-Captcha task API
type AntiCaptcha struct {
	config AntiCaptchaConfig
	client *http.Client
	logger *logrus.Logger
}

type antiCaptchaTask struct {
	Type      string `json:"type"`
	Body      string `json:"body"`
	Phrase    bool   `json:"phrase"`
	Case      bool   `json:"case"`
	Numeric   int    `json:"numeric"`
	Math      bool   `json:"math"`
	MinLength int    `json:"minLength"`
	MaxLength int    `json:"maxLength"`
}

type antiCaptchaCreateRequest struct {
	ClientKey string          `json:"clientKey"`
	Task      antiCaptchaTask `json:"task"`
}

type antiCaptchaResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type antiCaptchaResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           int64  `json:"taskId"`
	Status           string `json:"status"`
	Solution         struct {
		Text string `json:"text"`
	} `json:"solution"`
}

// NewAntiCaptcha creates an Anti-Captcha client
func NewAntiCaptcha(cfg AntiCaptchaConfig, logger *logrus.Logger) *AntiCaptcha {
	if cfg.BaseURL == "" {
		cfg.BaseURL = antiCaptchaBaseURL
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	return &AntiCaptcha{
		config: cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
	}
}

// Name identifies the solver in logs and stats
func (a *AntiCaptcha) Name() string {
	return "anticaptcha"
}

// Solve submits the image as a numeric-only task and polls for the text
func (a *AntiCaptcha) Solve(ctx context.Context, image []byte) (string, error) {
	if a.config.APIKey == "" {
		return "", fmt.Errorf("%w: anti-captcha API key not configured", ErrSolverUnavailable)
	}

	created, err := a.post(ctx, "/createTask", antiCaptchaCreateRequest{
		ClientKey: a.config.APIKey,
		Task: antiCaptchaTask{
			Type:    "ImageToTextTask",
			Body:    base64.StdEncoding.EncodeToString(image),
			Numeric: 1,
		},
	})
	if err != nil {
		return "", err
	}

	a.logger.WithField("task_id", created.TaskID).Debug("Anti-Captcha task created")

	for i := 1; i <= a.config.MaxPolls; i++ {
		if err := utils.Sleep(ctx, a.config.PollInterval); err != nil {
			return "", err
		}

		result, err := a.post(ctx, "/getTaskResult", antiCaptchaResultRequest{
			ClientKey: a.config.APIKey,
			TaskID:    created.TaskID,
		})
		if err != nil {
			return "", err
		}

		if result.Status == "ready" {
			if text := strings.TrimSpace(result.Solution.Text); text != "" {
				return text, nil
			}
		}

		a.logger.WithFields(logrus.Fields{
			"task_id": created.TaskID,
			"poll":    i,
			"of":      a.config.MaxPolls,
		}).Debug("Waiting for Anti-Captcha result")
	}

	return "", fmt.Errorf("%w: no result after %d polls", ErrSolverUnavailable, a.config.MaxPolls)
}

func (a *AntiCaptcha) post(ctx context.Context, path string, payload interface{}) (*antiCaptchaResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSolverUnavailable, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrSolverUnavailable, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrSolverUnavailable, path, resp.StatusCode)
	}

	var out antiCaptchaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrSolverUnavailable, path, err)
	}
	if out.ErrorID != 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrSolverUnavailable, out.ErrorCode, out.ErrorDescription)
	}
	return &out, nil
}
