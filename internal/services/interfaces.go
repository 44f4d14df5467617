package services

import (
	"context"
	"errors"
	"time"

	"github.com/adresconsulta/eps-api/internal/artifacts"
	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/navigator"
)

var (
	// ErrJobNotFound is returned for unknown or expired job ids
	ErrJobNotFound = errors.New("job not found")
	// ErrBatchNotFound is returned for unknown or expired batch ids
	ErrBatchNotFound = errors.New("batch not found")
	// ErrJobRunning is returned when deleting a job that has not finished
	ErrJobRunning = errors.New("job has not finished")
	// ErrEmptyBatch is returned when a batch has no rows
	ErrEmptyBatch = errors.New("batch has no rows")
	// ErrShuttingDown is returned for submissions after Close
	ErrShuttingDown = errors.New("service is shutting down")
)

// JobStore holds job and batch records. Reads return copies; the record
// is only written by the worker that owns it.
type JobStore interface {
	SaveJob(ctx context.Context, job models.QueryJob) error
	Job(ctx context.Context, id string) (models.QueryJob, error)
	DeleteJob(ctx context.Context, id string) error

	SaveBatch(ctx context.Context, batch models.BatchJob) error
	Batch(ctx context.Context, id string) (models.BatchJob, error)
	DeleteBatch(ctx context.Context, id string) error

	// Sweep drops terminal records last updated before cutoff
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Stats(ctx context.Context) (StoreStats, error)
	Health() map[string]interface{}
	Close() error
}

// StoreStats counts stored records
type StoreStats struct {
	Backend string `json:"backend"`
	Jobs    int    `json:"jobs"`
	Batches int    `json:"batches"`
}

// Publisher broadcasts record snapshots as they change
type Publisher interface {
	PublishJob(ctx context.Context, job models.QueryJob)
	PublishBatch(ctx context.Context, batch models.BatchJob)
	Close() error
}

// Portal is the form workflow run on a browser session
type Portal interface {
	Open(ctx context.Context, d browser.Driver) error
	SelectDocumentType(ctx context.Context, d browser.Driver, code string) error
	EnterDocumentNumber(ctx context.Context, d browser.Driver, number string) error
	EnterCaptcha(ctx context.Context, d browser.Driver, text string) error
	Submit(ctx context.Context, d browser.Driver) ([]string, error)
	CaptureResults(ctx context.Context, d browser.Driver, before []string) (navigator.Page, error)
}

// CaptchaResolver turns the CAPTCHA on the page into text
type CaptchaResolver interface {
	Resolve(ctx context.Context, d browser.Driver, challengeID string) (string, error)
	Stats() map[string]interface{}
}

// ArtifactStore persists result files, diagnostics and batch summaries
type ArtifactStore interface {
	SaveResult(ctx context.Context, r artifacts.Result) (map[string]string, error)
	SaveDiagnostics(ctx context.Context, prefix string, screenshot []byte, html string) ([]string, error)
	SaveBatch(ctx context.Context, batchID string, outcomes []models.RowOutcome) (string, error)
	Open(ctx context.Context, name string, kind artifacts.Kind) ([]byte, error)
	OpenBatch(ctx context.Context, batchID string) ([]byte, error)
}

// QueryServiceInterface is what the HTTP layer and CLI use
type QueryServiceInterface interface {
	Submit(ctx context.Context, documentType string, documentNumber interface{}) (models.QueryJob, error)
	SubmitBatch(ctx context.Context, rows []models.BatchRow) (models.BatchJob, error)
	RunQuery(ctx context.Context, documentType string, documentNumber interface{}) (models.QueryJob, error)
	RunBatch(ctx context.Context, rows []models.BatchRow) (models.BatchJob, error)
	Job(ctx context.Context, id string) (models.QueryJob, error)
	Batch(ctx context.Context, id string) (models.BatchJob, error)
	DeleteJob(ctx context.Context, id string) error
	Stats() models.QueryMetrics
	Health() map[string]interface{}
	Close() error
}

var (
	_ Portal          = (*navigator.WebNavigator)(nil)
	_ ArtifactStore   = (*artifacts.Store)(nil)
	_ browser.Opener  = (*browser.SessionFactory)(nil)
)
