package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	solveCaptchaBaseURL = "https://api.solvecaptcha.com"

	statusOK         = 1
	statusProcessing = 0

	errorNoSlotAvailable   = "ERROR_NO_SLOT_AVAILABLE"
	errorCaptchaUnsolvable = "ERROR_CAPTCHA_UNSOLVABLE"
	captchaNotReady        = "CAPCHA_NOT_READY"
)

// SolveCaptchaConfig configures the SolveCaptcha client
type SolveCaptchaConfig struct {
	APIKey       string
	BaseURL      string
	MaxPolls     int
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	// SubmitRetries bounds resubmission while the service has no free slot
	SubmitRetries int
}

// SolveCaptcha solves image CAPTCHAs through the in.php/res.php API
type SolveCaptcha struct {
	config SolveCaptchaConfig
	client *http.Client
	logger *logrus.Logger
}

type solveCaptchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
	Error   string `json:"error_text"`
}

// NewSolveCaptcha creates a SolveCaptcha client
func NewSolveCaptcha(cfg SolveCaptchaConfig, logger *logrus.Logger) *SolveCaptcha {
	if cfg.BaseURL == "" {
		cfg.BaseURL = solveCaptchaBaseURL
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
	if cfg.SubmitRetries <= 0 {
		cfg.SubmitRetries = 3
	}

	return &SolveCaptcha{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
		logger: logger,
	}
}

// Name identifies the solver in logs and stats
func (s *SolveCaptcha) Name() string {
	return "solvecaptcha"
}

// Solve submits the image with the numeric hint and polls for the text
func (s *SolveCaptcha) Solve(ctx context.Context, image []byte) (string, error) {
	if s.config.APIKey == "" {
		return "", fmt.Errorf("%w: solvecaptcha API key not configured", ErrSolverUnavailable)
	}

	var taskID string
	var err error
	for attempt := 1; attempt <= s.config.SubmitRetries; attempt++ {
		taskID, err = s.submit(ctx, image)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !strings.Contains(err.Error(), errorNoSlotAvailable) || attempt == s.config.SubmitRetries {
			return "", err
		}
		s.logger.WithField("attempt", attempt).Warn("SolveCaptcha has no free slot, retrying")
		if werr := utils.Sleep(ctx, s.config.PollInterval); werr != nil {
			return "", werr
		}
	}

	for i := 1; i <= s.config.MaxPolls; i++ {
		if err := utils.Sleep(ctx, s.config.PollInterval); err != nil {
			return "", err
		}

		text, err := s.check(ctx, taskID)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}

		s.logger.WithFields(logrus.Fields{"task_id": taskID, "poll": i}).Debug("Waiting for SolveCaptcha result")
	}

	return "", fmt.Errorf("%w: no result after %d polls", ErrSolverUnavailable, s.config.MaxPolls)
}

func (s *SolveCaptcha) submit(ctx context.Context, image []byte) (string, error) {
	payload := &bytes.Buffer{}
	writer := multipart.NewWriter(payload)

	fields := [][2]string{
		{"key", s.config.APIKey},
		{"method", "base64"},
		{"body", base64.StdEncoding.EncodeToString(image)},
		{"numeric", "1"},
		{"json", "1"},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/in.php", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := s.do(req)
	if err != nil {
		return "", err
	}
	return parseSubmitResponse(body)
}

func (s *SolveCaptcha) check(ctx context.Context, taskID string) (string, error) {
	q := url.Values{}
	q.Set("key", s.config.APIKey)
	q.Set("action", "get")
	q.Set("id", taskID)
	q.Set("json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/res.php?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	body, err := s.do(req)
	if err != nil {
		return "", err
	}
	return parseStatusResponse(body)
}

func (s *SolveCaptcha) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrSolverUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrSolverUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrSolverUnavailable, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrSolverUnavailable)
	}
	return body, nil
}

// parseSubmitResponse accepts both the JSON and the legacy OK|id replies
func parseSubmitResponse(body []byte) (string, error) {
	var resp solveCaptchaResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Status == statusOK && resp.Request != "" {
			return resp.Request, nil
		}
		return "", mapAPIError(resp.Request + " " + resp.Error)
	}

	text := strings.TrimSpace(string(body))
	if id, ok := strings.CutPrefix(text, "OK|"); ok && id != "" {
		return id, nil
	}
	return "", mapAPIError(text)
}

// parseStatusResponse returns "" while the task is still processing
func parseStatusResponse(body []byte) (string, error) {
	var resp solveCaptchaResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		switch {
		case resp.Status == statusOK && resp.Request != "":
			return resp.Request, nil
		case resp.Status == statusProcessing && resp.Request == captchaNotReady:
			return "", nil
		default:
			return "", mapAPIError(resp.Request + " " + resp.Error)
		}
	}

	text := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(text, "OK|") && len(text) > 3:
		return strings.TrimPrefix(text, "OK|"), nil
	case text == captchaNotReady:
		return "", nil
	default:
		return "", mapAPIError(text)
	}
}

func mapAPIError(msg string) error {
	msg = strings.TrimSpace(msg)
	switch {
	case strings.Contains(msg, errorNoSlotAvailable):
		return fmt.Errorf("%w: service temporarily unavailable: %s", ErrSolverUnavailable, msg)
	case strings.Contains(msg, errorCaptchaUnsolvable):
		return fmt.Errorf("%w: captcha unsolvable: %s", ErrSolverUnavailable, msg)
	case strings.Contains(msg, "ERROR_WRONG_USER_KEY"), strings.Contains(msg, "ERROR_KEY_DOES_NOT_EXIST"):
		return fmt.Errorf("%w: invalid API key: %s", ErrSolverUnavailable, msg)
	case strings.Contains(msg, "ERROR_ZERO_BALANCE"):
		return fmt.Errorf("%w: insufficient balance: %s", ErrSolverUnavailable, msg)
	default:
		return fmt.Errorf("%w: unexpected response: %s", ErrSolverUnavailable, msg)
	}
}
