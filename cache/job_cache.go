package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tgstream/logger"
	"tgstream/model"

	"github.com/go-redis/redis/v8"
)

// JobCache keeps recent job snapshots in Redis so status polling does not hit
// the database. A nil *JobCache is a no-op cache.
type JobCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobCache returns nil when client is nil.
func NewJobCache(client *redis.Client, ttl time.Duration) *JobCache {
	if client == nil {
		return nil
	}
	return &JobCache{client: client, ttl: ttl}
}

// JobKey is the Redis key of a job snapshot.
func JobKey(id string) string {
	return "job:" + id
}

// Set stores job. Errors are logged, never fatal to the caller.
func (c *JobCache) Set(ctx context.Context, job *model.Job) {
	if c == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		logger.Warn("Failed to encode job for cache", logger.String("jobId", job.ID), logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, JobKey(job.ID), data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache job", logger.String("jobId", job.ID), logger.ErrorField(err))
	}
}

// Get returns the cached job, or nil on a miss.
func (c *JobCache) Get(ctx context.Context, id string) (*model.Job, error) {
	if c == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, JobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached job %s: %w", id, err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode cached job %s: %w", id, err)
	}
	return &job, nil
}

// Delete removes the cached snapshot.
func (c *JobCache) Delete(ctx context.Context, id string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, JobKey(id)).Err(); err != nil {
		logger.Warn("Failed to evict cached job", logger.String("jobId", id), logger.ErrorField(err))
	}
}
