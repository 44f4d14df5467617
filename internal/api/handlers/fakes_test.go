package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/adresconsulta/eps-api/internal/artifacts"
	"github.com/adresconsulta/eps-api/internal/captcha"
	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeQueries keeps jobs and batches in maps and never runs them
type fakeQueries struct {
	mu      sync.Mutex
	jobs    map[string]models.QueryJob
	batches map[string]models.BatchJob
	rows    []models.BatchRow
	closed  bool
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		jobs:    make(map[string]models.QueryJob),
		batches: make(map[string]models.BatchJob),
	}
}

func (f *fakeQueries) Submit(_ context.Context, documentType string, documentNumber interface{}) (models.QueryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return models.QueryJob{}, services.ErrShuttingDown
	}
	t, n, err := utils.ValidateDocument(documentType, documentNumber)
	if err != nil {
		return models.QueryJob{}, err
	}
	job := models.NewQueryJob(t, n, time.Now())
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeQueries) SubmitBatch(_ context.Context, rows []models.BatchRow) (models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(rows) == 0 {
		return models.BatchJob{}, services.ErrEmptyBatch
	}
	f.rows = rows
	batch := models.NewBatchJob(len(rows), time.Now())
	f.batches[batch.ID] = batch
	return batch, nil
}

func (f *fakeQueries) RunQuery(ctx context.Context, documentType string, documentNumber interface{}) (models.QueryJob, error) {
	return f.Submit(ctx, documentType, documentNumber)
}

func (f *fakeQueries) RunBatch(ctx context.Context, rows []models.BatchRow) (models.BatchJob, error) {
	return f.SubmitBatch(ctx, rows)
}

func (f *fakeQueries) Job(_ context.Context, id string) (models.QueryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return models.QueryJob{}, fmt.Errorf("%w: %s", services.ErrJobNotFound, id)
	}
	return job, nil
}

func (f *fakeQueries) Batch(_ context.Context, id string) (models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch, ok := f.batches[id]
	if !ok {
		return models.BatchJob{}, fmt.Errorf("%w: %s", services.ErrBatchNotFound, id)
	}
	return batch, nil
}

func (f *fakeQueries) DeleteJob(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", services.ErrJobNotFound, id)
	}
	if !job.State.Terminal() {
		return fmt.Errorf("%w: %s", services.ErrJobRunning, id)
	}
	delete(f.jobs, id)
	return nil
}

func (f *fakeQueries) put(job models.QueryJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

func (f *fakeQueries) putBatch(batch models.BatchJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[batch.ID] = batch
}

func (f *fakeQueries) Stats() models.QueryMetrics {
	return models.QueryMetrics{Submitted: 4, Completed: 3, Failed: 1, SuccessRate: 75}
}

func (f *fakeQueries) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

func (f *fakeQueries) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ services.QueryServiceInterface = (*fakeQueries)(nil)

// fakeFiles serves artifacts from memory
type fakeFiles map[string][]byte

func (f fakeFiles) Open(_ context.Context, name string, kind artifacts.Kind) ([]byte, error) {
	data, ok := f[name+"."+kind.Ext()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", artifacts.ErrArtifactNotFound, name)
	}
	return data, nil
}

func (f fakeFiles) OpenBatch(_ context.Context, id string) ([]byte, error) {
	data, ok := f["lote_"+id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", artifacts.ErrArtifactNotFound, id)
	}
	return data, nil
}

// fakeSessions counts restarts
type fakeSessions struct {
	status   string
	restarts int
}

func (s *fakeSessions) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"active_sessions": 1,
		"max_sessions":    2,
		"total_opened":    int64(7),
		"open_failures":   int64(1),
	}
}

func (s *fakeSessions) Health() map[string]interface{} {
	return map[string]interface{}{"status": s.status}
}

func (s *fakeSessions) CloseAll() int {
	s.restarts++
	return 1
}

type fakeCaptchaStats struct{}

func (fakeCaptchaStats) Stats() map[string]interface{} {
	return map[string]interface{}{"solver": "none", "solved": int64(2), "manual": int64(5), "cancelled": int64(1)}
}

type healthMap map[string]interface{}

func (h healthMap) Health() map[string]interface{} { return h }

var errBoom = errors.New("boom")

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newPrompts() *captcha.WebPrompter {
	return captcha.NewWebPrompter(0, logger.Discard())
}
