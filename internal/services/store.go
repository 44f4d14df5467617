package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/sirupsen/logrus"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	jobs    map[string]models.QueryJob
	batches map[string]models.BatchJob
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		logger:  logger,
		jobs:    make(map[string]models.QueryJob),
		batches: make(map[string]models.BatchJob),
	}
}

func (m *MemoryStore) SaveJob(_ context.Context, job models.QueryJob) error {
	m.mu.Lock()
	m.jobs[job.ID] = job.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Job(_ context.Context, id string) (models.QueryJob, error) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return models.QueryJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

func (m *MemoryStore) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	delete(m.jobs, id)
	return nil
}

func (m *MemoryStore) SaveBatch(_ context.Context, batch models.BatchJob) error {
	m.mu.Lock()
	m.batches[batch.ID] = batch.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Batch(_ context.Context, id string) (models.BatchJob, error) {
	m.mu.RLock()
	batch, ok := m.batches[id]
	m.mu.RUnlock()
	if !ok {
		return models.BatchJob{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return batch.Clone(), nil
}

func (m *MemoryStore) DeleteBatch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[id]; !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	delete(m.batches, id)
	return nil
}

// Sweep removes finished records not updated since cutoff
func (m *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if job.State.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	for id, batch := range m.batches {
		if batch.State.Terminal() && batch.UpdatedAt.Before(cutoff) {
			delete(m.batches, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Stats(context.Context) (StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return StoreStats{Backend: "memory", Jobs: len(m.jobs), Batches: len(m.batches)}, nil
}

func (m *MemoryStore) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy", "backend": "memory"}
}

func (m *MemoryStore) Close() error { return nil }

// StartSweeper removes expired records every interval until ctx ends
func StartSweeper(ctx context.Context, store JobStore, retention, interval time.Duration, logger *logrus.Logger) {
	if retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.Sweep(ctx, now.Add(-retention))
			if err != nil {
				logger.WithError(err).Warn("Record sweep failed")
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("Expired records removed")
			}
		}
	}
}
