package cache

import (
	"context"
	"errors"
	"time"

	"tgstream/logger"

	"github.com/go-redis/redis/v8"
)

// SegmentCache holds stream files fetched back from object storage so repeated
// segment requests for a pruned local job skip the MinIO round trip.
// A nil *SegmentCache is a no-op cache.
type SegmentCache struct {
	client  *redis.Client
	ttl     time.Duration
	maxSize int
}

// NewSegmentCache returns nil when client is nil. Files larger than maxSize bytes are not cached.
func NewSegmentCache(client *redis.Client, ttl time.Duration, maxSize int) *SegmentCache {
	if client == nil {
		return nil
	}
	return &SegmentCache{client: client, ttl: ttl, maxSize: maxSize}
}

// SegmentKey is the Redis key of one stream file.
func SegmentKey(jobID, file string) string {
	return "segment:" + jobID + ":" + file
}

// Set stores data under the job's file name.
func (c *SegmentCache) Set(ctx context.Context, jobID, file string, data []byte) {
	if c == nil || len(data) > c.maxSize {
		return
	}
	key := SegmentKey(jobID, file)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache segment",
			logger.String("key", key),
			logger.Int("dataSize", len(data)),
			logger.ErrorField(err))
	}
}

// Get returns cached bytes or nil. Lookup failures count as a miss so the
// caller falls through to object storage.
func (c *SegmentCache) Get(ctx context.Context, jobID, file string) []byte {
	if c == nil {
		return nil
	}
	key := SegmentKey(jobID, file)

	const maxRetries = 2
	retryDelay := 100 * time.Millisecond
	for attempt := 0; attempt < maxRetries; attempt++ {
		data, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return data
		}
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if attempt < maxRetries-1 {
			logger.Warn("Segment cache read failed, retrying",
				logger.String("key", key),
				logger.Int("attempt", attempt+1),
				logger.ErrorField(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
			continue
		}
		logger.Error("Segment cache read failed, using object storage",
			logger.String("key", key),
			logger.ErrorField(err))
	}
	return nil
}

// DeleteJob drops every cached file of a job.
func (c *SegmentCache) DeleteJob(ctx context.Context, jobID string) {
	if c == nil {
		return
	}
	pattern := SegmentKey(jobID, "*")
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("Failed to scan segment cache", logger.String("pattern", pattern), logger.ErrorField(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("Failed to delete segment cache",
			logger.String("pattern", pattern),
			logger.Int("keysCount", len(keys)),
			logger.ErrorField(err))
	}
}
