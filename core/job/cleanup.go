package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tgstream/cache"
	"tgstream/logger"
	"tgstream/model"
	"tgstream/repository"
)

// Sweeper deletes job outputs and records older than a TTL.
type Sweeper struct {
	OutputDir   string
	TTL         time.Duration
	MinInterval time.Duration // MaybeSweep skips passes closer together than this

	Repo     repository.JobRepository
	Cache    *cache.JobCache
	Segments *cache.SegmentCache
	Mirror   Mirror

	mu      sync.Mutex
	lastRun time.Time
}

// MaybeSweep runs Sweep unless one ran within MinInterval. Errors are logged.
func (s *Sweeper) MaybeSweep(ctx context.Context) {
	s.mu.Lock()
	if !s.lastRun.IsZero() && time.Since(s.lastRun) < s.MinInterval {
		s.mu.Unlock()
		return
	}
	s.lastRun = time.Now()
	s.mu.Unlock()

	if _, err := s.Sweep(ctx); err != nil {
		logger.Warn("Cleanup pass failed", logger.ErrorField(err))
	}
}

// Sweep removes every expired job and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.TTL)
	removed := make(map[string]struct{})

	entries, err := os.ReadDir(s.OutputDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	for _, entry := range entries {
		if !entry.IsDir() || !model.IsJobID(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.OutputDir, entry.Name())); err != nil {
			logger.Warn("Failed to remove expired job directory",
				logger.String("jobId", entry.Name()),
				logger.ErrorField(err))
			continue
		}
		removed[entry.Name()] = struct{}{}
	}

	if s.Repo != nil {
		jobs, err := s.Repo.ListOlderThan(ctx, cutoff)
		if err != nil {
			return len(removed), err
		}
		for _, job := range jobs {
			if !job.Done() {
				if _, gone := removed[job.ID]; !gone {
					continue
				}
			}
			os.RemoveAll(filepath.Join(s.OutputDir, job.ID))
			removed[job.ID] = struct{}{}
		}
	}

	for id := range removed {
		s.forget(ctx, id)
	}

	if len(removed) > 0 {
		logger.Info("Removed expired jobs",
			logger.Int("count", len(removed)),
			logger.Duration("ttl", s.TTL))
	}
	return len(removed), nil
}

// forget drops everything kept about a job outside its local directory.
func (s *Sweeper) forget(ctx context.Context, id string) {
	if s.Repo != nil {
		if err := s.Repo.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrJobNotFound) {
			logger.Warn("Failed to delete job record", logger.String("jobId", id), logger.ErrorField(err))
		}
	}
	s.Cache.Delete(ctx, id)
	s.Segments.DeleteJob(ctx, id)
	if s.Mirror != nil {
		if _, err := s.Mirror.DeleteJob(ctx, id); err != nil {
			logger.Warn("Failed to delete mirrored objects", logger.String("jobId", id), logger.ErrorField(err))
		}
	}
}
