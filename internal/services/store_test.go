package services

import (
	"context"
	"testing"
	"time"

	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "adres:", 24*time.Hour, logger.Discard())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func stores(t *testing.T) map[string]JobStore {
	redisStore, _ := newRedisStore(t)
	return map[string]JobStore{
		"memory": NewMemoryStore(logger.Discard()),
		"redis":  redisStore,
	}
}

func TestStoreJobRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := models.NewQueryJob("CC", "1006881471", time.Now())

			_, err := store.Job(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobNotFound)

			require.NoError(t, store.SaveJob(ctx, job))
			require.NoError(t, job.Advance(models.StateResolvingCaptcha, "Resolviendo CAPTCHA", time.Now()))
			job.CaptchaID = job.ID
			require.NoError(t, store.SaveJob(ctx, job))

			got, err := store.Job(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StateResolvingCaptcha, got.State)
			assert.Equal(t, 45, got.Progress)
			assert.Equal(t, job.ID, got.CaptchaID)

			require.NoError(t, store.DeleteJob(ctx, job.ID))
			assert.ErrorIs(t, store.DeleteJob(ctx, job.ID), ErrJobNotFound)
		})
	}
}

func TestStoreBatchRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			batch := models.NewBatchJob(2, time.Now())
			batch.Record(models.RowOutcome{Line: 2, State: models.StateCompleted}, time.Now())

			_, err := store.Batch(ctx, batch.ID)
			assert.ErrorIs(t, err, ErrBatchNotFound)

			require.NoError(t, store.SaveBatch(ctx, batch))
			got, err := store.Batch(ctx, batch.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.Processed)
			assert.Len(t, got.Outcomes, 1)

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, name, stats.Backend)
			assert.Equal(t, 1, stats.Batches)

			require.NoError(t, store.DeleteBatch(ctx, batch.ID))
			assert.ErrorIs(t, store.DeleteBatch(ctx, batch.ID), ErrBatchNotFound)
			assert.Equal(t, "healthy", store.Health()["status"])
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(logger.Discard())
	ctx := context.Background()
	job := models.NewQueryJob("CC", "1", time.Now())
	job.Artifacts = map[string]string{"html": "a.html"}
	require.NoError(t, store.SaveJob(ctx, job))

	job.Artifacts["html"] = "mutated"
	got, err := store.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.html", got.Artifacts["html"])

	got.Artifacts["html"] = "mutated again"
	again, _ := store.Job(ctx, job.ID)
	assert.Equal(t, "a.html", again.Artifacts["html"])
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(logger.Discard())
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	finished := models.NewQueryJob("CC", "1", old)
	finished.Fail(nil, "Error", old)
	running := models.NewQueryJob("CC", "2", old)
	recent := models.NewQueryJob("CC", "3", time.Now())
	recent.Fail(nil, "Error", time.Now())
	batch := models.NewBatchJob(1, old)
	batch.State = models.BatchCompleted

	for _, j := range []models.QueryJob{finished, running, recent} {
		require.NoError(t, store.SaveJob(ctx, j))
	}
	require.NoError(t, store.SaveBatch(ctx, batch))

	removed, err := store.Sweep(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Job(ctx, finished.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = store.Job(ctx, running.ID)
	assert.NoError(t, err, "running jobs are never swept")
	_, err = store.Job(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestStartSweeper(t *testing.T) {
	store := NewMemoryStore(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := models.NewQueryJob("CC", "1", time.Now())
	job.Fail(nil, "Error", time.Now().Add(-time.Hour))
	require.NoError(t, store.SaveJob(ctx, job))

	go StartSweeper(ctx, store, time.Minute, 5*time.Millisecond, logger.Discard())

	require.Eventually(t, func() bool {
		_, err := store.Job(ctx, job.ID)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestRedisStoreExpiresFinishedRecords(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	job := models.NewQueryJob("CC", "1", time.Now())
	require.NoError(t, store.SaveJob(ctx, job))
	assert.Zero(t, mr.TTL("adres:job:"+job.ID), "running jobs do not expire")

	job.Fail(nil, "Error", time.Now())
	require.NoError(t, store.SaveJob(ctx, job))
	assert.Equal(t, 24*time.Hour, mr.TTL("adres:job:"+job.ID))

	mr.FastForward(25 * time.Hour)
	_, err := store.Job(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	removed, err := store.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	assert.Equal(t, "unhealthy", store.Health()["status"])
	err := store.SaveJob(context.Background(), models.NewQueryJob("CC", "1", time.Now()))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrJobNotFound)
}
