package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchState is the lifecycle of a spreadsheet batch
type BatchState string

const (
	BatchPending   BatchState = "pending"
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
	BatchFailed    BatchState = "failed"
)

// Terminal reports whether the batch has finished
func (s BatchState) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchRow is one spreadsheet row before normalization. DocumentNumber
// keeps the cell's native type (string or float64).
type BatchRow struct {
	Line           int         `json:"line"`
	DocumentType   string      `json:"document_type"`
	DocumentNumber interface{} `json:"document_number"`
}

// RowOutcome is the terminal snapshot of one batch row
type RowOutcome struct {
	Line           int               `json:"line" example:"2"`
	DocumentType   string            `json:"document_type" example:"CC"`
	DocumentNumber string            `json:"document_number" example:"1006881471"`
	State          JobState          `json:"state" example:"completed"`
	Message        string            `json:"message"`
	Result         *ResultRecord     `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	ArtifactName   string            `json:"artifact_name,omitempty"`
	Artifacts      map[string]string `json:"artifacts,omitempty"`
	DownloadLinks  map[string]string `json:"download_links,omitempty"`
}

// Succeeded reports whether the row completed
func (o RowOutcome) Succeeded() bool {
	return o.State == StateCompleted
}

// BatchJob is the pollable record of a batch run
type BatchJob struct {
	ID           string       `json:"id" example:"1760884862_9b1c04e7"`
	State        BatchState   `json:"state" example:"running"`
	Total        int          `json:"total" example:"10"`
	Processed    int          `json:"processed" example:"4"`
	Succeeded    int          `json:"succeeded" example:"3"`
	Failed       int          `json:"failed" example:"1"`
	Message      string       `json:"message" example:"Procesando 5/10: CC 1006881471"`
	Outcomes     []RowOutcome `json:"outcomes"`
	Artifact     string       `json:"artifact,omitempty"`
	DownloadLink string       `json:"download_link,omitempty"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewBatchJob creates a pending batch over total rows
func NewBatchJob(total int, now time.Time) BatchJob {
	return BatchJob{
		ID:        fmt.Sprintf("%d_%s", now.Unix(), uuid.New().String()[:8]),
		State:     BatchPending,
		Total:     total,
		Message:   "Lote en cola",
		Outcomes:  []RowOutcome{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record appends a row outcome and keeps processed equal to succeeded plus failed
func (b *BatchJob) Record(outcome RowOutcome, now time.Time) {
	b.Outcomes = append(b.Outcomes, outcome)
	if outcome.Succeeded() {
		b.Succeeded++
	} else {
		b.Failed++
	}
	b.Processed = b.Succeeded + b.Failed
	b.UpdatedAt = now
}

// Clone returns a deep copy safe to hand to another goroutine
func (b BatchJob) Clone() BatchJob {
	out := b
	out.Outcomes = make([]RowOutcome, len(b.Outcomes))
	for i, o := range b.Outcomes {
		o.Artifacts = cloneMap(o.Artifacts)
		o.DownloadLinks = cloneMap(o.DownloadLinks)
		if o.Result != nil {
			r := *o.Result
			r.Affiliations = append([]Affiliation(nil), o.Result.Affiliations...)
			o.Result = &r
		}
		out.Outcomes[i] = o
	}
	return out
}
