package models

import (
	"time"
)

// QueryRequest represents a single document query request
type QueryRequest struct {
	DocumentType   string `json:"document_type" binding:"required" example:"CC"`
	DocumentNumber string `json:"document_number" binding:"required" example:"1006881471"`
}

// QueryAccepted is returned when a query job has been queued
type QueryAccepted struct {
	JobID     string    `json:"job_id" example:"CC_1006881471_1760884862_3f2a9c1d"`
	State     JobState  `json:"state" example:"initializing"`
	StatusURL string    `json:"status_url" example:"/api/v1/queries/CC_1006881471_1760884862_3f2a9c1d"`
	Timestamp time.Time `json:"timestamp" example:"2026-10-19T10:30:00Z"`
}

// BatchAccepted is returned when a spreadsheet batch has been queued
type BatchAccepted struct {
	BatchID   string    `json:"batch_id" example:"1760884862_9b1c04e7"`
	Total     int       `json:"total" example:"10"`
	StatusURL string    `json:"status_url" example:"/api/v1/batches/1760884862_9b1c04e7"`
	Timestamp time.Time `json:"timestamp" example:"2026-10-19T10:30:00Z"`
}

// CaptchaChallenge describes a CAPTCHA waiting for an operator
type CaptchaChallenge struct {
	ID        string    `json:"id" example:"CC_1006881471_1760884862_3f2a9c1d"`
	ImageURL  string    `json:"image_url" example:"/api/v1/captchas/CC_1006881471_1760884862_3f2a9c1d/image"`
	CreatedAt time.Time `json:"created_at" example:"2026-10-19T10:30:00Z"`
}

// CaptchaAnswerRequest carries the operator's CAPTCHA transcription
type CaptchaAnswerRequest struct {
	Text string `json:"text" binding:"required" example:"48213"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error" example:"Invalid document type"`
	Message   string    `json:"message" example:"document_type must be one of CC, TI, CE, PA, RC, NU, AS, MS, CD, CN, SC, PE, PT"`
	Code      string    `json:"code,omitempty" example:"INVALID_DOCUMENT_TYPE"`
	Timestamp time.Time `json:"timestamp" example:"2026-10-19T10:30:00Z"`
	Path      string    `json:"path" example:"/api/v1/queries"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp" example:"2026-10-19T10:30:00Z"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"2h30m45s"`
}

// ServiceInfo represents individual service health
type ServiceInfo struct {
	Status    string    `json:"status" example:"healthy"`
	LastCheck time.Time `json:"last_check" example:"2026-10-19T10:30:00Z"`
	Error     string    `json:"error,omitempty"`
}

// MetricsResponse represents metrics response
type MetricsResponse struct {
	Queries   QueryMetrics   `json:"queries"`
	Browser   BrowserMetrics `json:"browser"`
	Captcha   CaptchaMetrics `json:"captcha"`
	System    SystemMetrics  `json:"system"`
	Timestamp time.Time      `json:"timestamp" example:"2026-10-19T10:30:00Z"`
}

// QueryMetrics represents query job counters
type QueryMetrics struct {
	Submitted   int64   `json:"submitted" example:"150"`
	Completed   int64   `json:"completed" example:"140"`
	Failed      int64   `json:"failed" example:"10"`
	InFlight    int64   `json:"in_flight" example:"1"`
	Batches     int64   `json:"batches" example:"3"`
	SuccessRate float64 `json:"success_rate" example:"93.33"`
}

// BrowserMetrics represents browser session counters
type BrowserMetrics struct {
	ActiveSessions int   `json:"active_sessions" example:"1"`
	MaxSessions    int   `json:"max_sessions" example:"2"`
	TotalOpened    int64 `json:"total_opened" example:"151"`
	OpenFailures   int64 `json:"open_failures" example:"0"`
}

// CaptchaMetrics represents CAPTCHA resolution counters
type CaptchaMetrics struct {
	Solved    int64 `json:"solved" example:"120"`
	Manual    int64 `json:"manual" example:"25"`
	Cancelled int64 `json:"cancelled" example:"2"`
	TimedOut  int64 `json:"timed_out" example:"0"`
	Pending   int   `json:"pending" example:"0"`
}

// SystemMetrics represents system metrics
type SystemMetrics struct {
	MemoryUsage float64 `json:"memory_usage" example:"512.5"`
	Goroutines  int     `json:"goroutines" example:"125"`
}
