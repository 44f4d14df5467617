package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps records as JSON strings. Finished records get the
// retention TTL so Redis expires them on its own.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	logger    *logrus.Logger
}

// NewRedisStore creates a store on an established client
func NewRedisStore(client *redis.Client, prefix string, retention time.Duration, logger *logrus.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, retention: retention, logger: logger}
}

func (r *RedisStore) jobKey(id string) string   { return r.prefix + "job:" + id }
func (r *RedisStore) batchKey(id string) string { return r.prefix + "batch:" + id }

func (r *RedisStore) ttl(terminal bool) time.Duration {
	if terminal {
		return r.retention
	}
	return 0
}

func (r *RedisStore) put(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) get(ctx context.Context, key string, v interface{}, notFound error) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) del(ctx context.Context, key string, notFound error) error {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (r *RedisStore) SaveJob(ctx context.Context, job models.QueryJob) error {
	return r.put(ctx, r.jobKey(job.ID), job, r.ttl(job.State.Terminal()))
}

func (r *RedisStore) Job(ctx context.Context, id string) (models.QueryJob, error) {
	var job models.QueryJob
	err := r.get(ctx, r.jobKey(id), &job, fmt.Errorf("%w: %s", ErrJobNotFound, id))
	return job, err
}

func (r *RedisStore) DeleteJob(ctx context.Context, id string) error {
	return r.del(ctx, r.jobKey(id), fmt.Errorf("%w: %s", ErrJobNotFound, id))
}

func (r *RedisStore) SaveBatch(ctx context.Context, batch models.BatchJob) error {
	return r.put(ctx, r.batchKey(batch.ID), batch, r.ttl(batch.State.Terminal()))
}

func (r *RedisStore) Batch(ctx context.Context, id string) (models.BatchJob, error) {
	var batch models.BatchJob
	err := r.get(ctx, r.batchKey(id), &batch, fmt.Errorf("%w: %s", ErrBatchNotFound, id))
	return batch, err
}

func (r *RedisStore) DeleteBatch(ctx context.Context, id string) error {
	return r.del(ctx, r.batchKey(id), fmt.Errorf("%w: %s", ErrBatchNotFound, id))
}

// Sweep is a no-op; expiry is delegated to key TTLs
func (r *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *RedisStore) count(ctx context.Context, pattern string) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

func (r *RedisStore) Stats(ctx context.Context) (StoreStats, error) {
	jobs, err := r.count(ctx, r.prefix+"job:*")
	if err != nil {
		return StoreStats{}, err
	}
	batches, err := r.count(ctx, r.prefix+"batch:*")
	if err != nil {
		return StoreStats{}, err
	}
	return StoreStats{Backend: "redis", Jobs: jobs, Batches: batches}, nil
}

func (r *RedisStore) Health() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return map[string]interface{}{
			"status":  "unhealthy",
			"backend": "redis",
			"error":   err.Error(),
		}
	}
	return map[string]interface{}{"status": "healthy", "backend": "redis"}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
