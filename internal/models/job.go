package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobState is a step of the single query workflow
type JobState string

const (
	StateInitializing           JobState = "initializing"
	StateSelectingDocumentType  JobState = "selecting_document_type"
	StateEnteringDocumentNumber JobState = "entering_document_number"
	StateResolvingCaptcha       JobState = "resolving_captcha"
	StateEnteringCaptcha        JobState = "entering_captcha"
	StateSubmitting             JobState = "submitting"
	StateCapturingResults       JobState = "capturing_results"
	StateCompleted              JobState = "completed"
	StateFailed                 JobState = "failed"
)

// ErrInvalidTransition is returned when a job would move backwards or leave a terminal state
var ErrInvalidTransition = errors.New("invalid job state transition")

type stateInfo struct {
	rank     int
	progress int
}

var states = map[JobState]stateInfo{
	StateInitializing:           {0, 10},
	StateSelectingDocumentType:  {1, 20},
	StateEnteringDocumentNumber: {2, 30},
	StateResolvingCaptcha:       {3, 45},
	StateEnteringCaptcha:        {4, 60},
	StateSubmitting:             {5, 75},
	StateCapturingResults:       {6, 90},
	StateCompleted:              {7, 100},
	StateFailed:                 {7, 100},
}

// Progress returns the checkpoint percentage of the state
func (s JobState) Progress() int {
	return states[s].progress
}

// Terminal reports whether no further transition is allowed
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Valid reports whether s is a known state
func (s JobState) Valid() bool {
	_, ok := states[s]
	return ok
}

// QueryJob is the pollable record of a single document query
type QueryJob struct {
	ID             string            `json:"id" example:"CC_1006881471_1760884862_3f2a9c1d"`
	DocumentType   string            `json:"document_type" example:"CC"`
	DocumentNumber string            `json:"document_number" example:"1006881471"`
	State          JobState          `json:"state" example:"resolving_captcha"`
	Progress       int               `json:"progress" example:"45"`
	Message        string            `json:"message" example:"Resolviendo CAPTCHA"`
	Result         *ResultRecord     `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	ArtifactName   string            `json:"artifact_name,omitempty" example:"CC_1006881471"`
	Artifacts      map[string]string `json:"artifacts,omitempty"`
	DownloadLinks  map[string]string `json:"download_links,omitempty"`
	Diagnostics    []string          `json:"diagnostics,omitempty"`
	CaptchaID      string            `json:"captcha_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewQueryJob creates a job in the initializing state. The ID combines the
// document identity with the creation time.
func NewQueryJob(documentType, documentNumber string, now time.Time) QueryJob {
	suffix := uuid.New().String()[:8]
	return QueryJob{
		ID:             fmt.Sprintf("%s_%s_%d_%s", documentType, documentNumber, now.Unix(), suffix),
		DocumentType:   documentType,
		DocumentNumber: documentNumber,
		State:          StateInitializing,
		Progress:       StateInitializing.Progress(),
		Message:        "Iniciando consulta",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Advance moves the job forward to state. Backward moves and moves out of
// a terminal state are rejected.
func (j *QueryJob) Advance(state JobState, message string, now time.Time) error {
	next, ok := states[state]
	if !ok {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, state)
	}
	if j.State.Terminal() {
		return fmt.Errorf("%w: job already %s", ErrInvalidTransition, j.State)
	}
	if next.rank < states[j.State].rank {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, state)
	}

	j.State = state
	j.Progress = next.progress
	j.Message = message
	j.UpdatedAt = now
	return nil
}

// Fail moves the job to the failed state from any non-terminal state
func (j *QueryJob) Fail(err error, message string, now time.Time) {
	if j.State.Terminal() {
		return
	}
	j.State = StateFailed
	j.Progress = StateFailed.Progress()
	j.Message = message
	if err != nil {
		j.Error = err.Error()
	}
	j.UpdatedAt = now
}

// Clone returns a deep copy safe to hand to another goroutine
func (j QueryJob) Clone() QueryJob {
	out := j
	if j.Result != nil {
		r := *j.Result
		r.Affiliations = append([]Affiliation(nil), j.Result.Affiliations...)
		out.Result = &r
	}
	out.Artifacts = cloneMap(j.Artifacts)
	out.DownloadLinks = cloneMap(j.DownloadLinks)
	out.Diagnostics = append([]string(nil), j.Diagnostics...)
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
