package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// QueryService accepts single queries and batches, runs them in the
// background and answers status polls from the job store.
type QueryService struct {
	runner  *Runner
	batches *BatchProcessor
	store   JobStore
	logger  *logrus.Logger

	// base outlives request contexts; Close cancels it
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	submitted  atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	inFlight   atomic.Int64
	batchCount atomic.Int64

	now func() time.Time
}

// NewQueryService creates the query service
func NewQueryService(runner *Runner, batches *BatchProcessor, store JobStore, logger *logrus.Logger) *QueryService {
	base, cancel := context.WithCancel(context.Background())
	return &QueryService{
		runner:  runner,
		batches: batches,
		store:   store,
		logger:  logger,
		base:    base,
		cancel:  cancel,
		now:     time.Now,
	}
}

func (s *QueryService) newJob(ctx context.Context, documentType string, documentNumber interface{}) (models.QueryJob, error) {
	t, n, err := utils.ValidateDocument(documentType, documentNumber)
	if err != nil {
		return models.QueryJob{}, err
	}
	job := models.NewQueryJob(t, n, s.now())
	if err := s.store.SaveJob(ctx, job); err != nil {
		return models.QueryJob{}, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

// start registers background work unless the service is closing
func (s *QueryService) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShuttingDown
	}
	s.wg.Add(1)
	return nil
}

// Submit validates the document, stores a new job and runs it in the
// background. The returned snapshot is the initial one.
func (s *QueryService) Submit(ctx context.Context, documentType string, documentNumber interface{}) (models.QueryJob, error) {
	if err := s.start(); err != nil {
		return models.QueryJob{}, err
	}
	job, err := s.newJob(ctx, documentType, documentNumber)
	if err != nil {
		s.wg.Done()
		return models.QueryJob{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":          job.ID,
		"document_type":   job.DocumentType,
		"document_number": job.DocumentNumber,
	}).Info("Query accepted")

	go func() {
		defer s.wg.Done()
		s.run(s.base, job)
	}()
	return job, nil
}

// RunQuery runs a query in the caller's goroutine and returns the terminal
// snapshot.
func (s *QueryService) RunQuery(ctx context.Context, documentType string, documentNumber interface{}) (models.QueryJob, error) {
	job, err := s.newJob(ctx, documentType, documentNumber)
	if err != nil {
		return models.QueryJob{}, err
	}
	return s.run(ctx, job), nil
}

func (s *QueryService) run(ctx context.Context, job models.QueryJob) models.QueryJob {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	final := s.runner.Run(ctx, job)
	s.submitted.Add(1)
	if final.State == models.StateCompleted {
		s.completed.Add(1)
	} else {
		s.failed.Add(1)
	}
	return final
}

func (s *QueryService) newBatch(ctx context.Context, rows []models.BatchRow) (models.BatchJob, error) {
	if len(rows) == 0 {
		return models.BatchJob{}, ErrEmptyBatch
	}
	batch := models.NewBatchJob(len(rows), s.now())
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return models.BatchJob{}, fmt.Errorf("save batch: %w", err)
	}
	return batch, nil
}

// SubmitBatch stores a pending batch and processes its rows in the background
func (s *QueryService) SubmitBatch(ctx context.Context, rows []models.BatchRow) (models.BatchJob, error) {
	if err := s.start(); err != nil {
		return models.BatchJob{}, err
	}
	batch, err := s.newBatch(ctx, rows)
	if err != nil {
		s.wg.Done()
		return models.BatchJob{}, err
	}

	s.logger.WithFields(logrus.Fields{"batch_id": batch.ID, "total": batch.Total}).Info("Batch accepted")

	rows = append([]models.BatchRow(nil), rows...)
	go func() {
		defer s.wg.Done()
		s.trackBatch(s.batches.Process(s.base, batch, rows))
	}()
	return batch, nil
}

// RunBatch processes rows in the caller's goroutine
func (s *QueryService) RunBatch(ctx context.Context, rows []models.BatchRow) (models.BatchJob, error) {
	batch, err := s.newBatch(ctx, rows)
	if err != nil {
		return models.BatchJob{}, err
	}
	final := s.batches.Process(ctx, batch, rows)
	s.trackBatch(final)
	return final, nil
}

func (s *QueryService) trackBatch(batch models.BatchJob) {
	s.batchCount.Add(1)
	s.submitted.Add(int64(batch.Processed))
	s.completed.Add(int64(batch.Succeeded))
	s.failed.Add(int64(batch.Failed))
}

// Job returns the latest snapshot of a query job
func (s *QueryService) Job(ctx context.Context, id string) (models.QueryJob, error) {
	return s.store.Job(ctx, id)
}

// Batch returns the latest snapshot of a batch
func (s *QueryService) Batch(ctx context.Context, id string) (models.BatchJob, error) {
	return s.store.Batch(ctx, id)
}

// DeleteJob removes a finished job. Running jobs cannot be removed.
func (s *QueryService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.store.Job(ctx, id)
	if err != nil {
		return err
	}
	if !job.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobRunning, id, job.State)
	}
	return s.store.DeleteJob(ctx, id)
}

// Stats returns query counters
func (s *QueryService) Stats() models.QueryMetrics {
	m := models.QueryMetrics{
		Submitted: s.submitted.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		InFlight:  s.inFlight.Load(),
		Batches:   s.batchCount.Load(),
	}
	if m.Submitted > 0 {
		m.SuccessRate = float64(m.Completed) / float64(m.Submitted) * 100
	}
	return m
}

// Health returns query service health status
func (s *QueryService) Health() map[string]interface{} {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	status := "healthy"
	if closed {
		status = "unhealthy"
	}
	return map[string]interface{}{
		"status": status,
		"stats":  s.Stats(),
	}
}

// Close rejects new work, cancels running jobs and waits for them to
// reach a terminal state.
func (s *QueryService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("Query service stopped")
	return nil
}

var _ QueryServiceInterface = (*QueryService)(nil)
