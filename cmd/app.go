package cmd

import (
	"context"
	"time"

	"tgstream/cache"
	"tgstream/config"
	"tgstream/core/auth"
	"tgstream/core/job"
	"tgstream/core/video"
	"tgstream/db"
	"tgstream/logger"
	"tgstream/repository"
	"tgstream/storage"
)

// segment cache entries above this size go straight to object storage
const maxCachedSegment = 8 << 20

// app holds the wired dependencies shared by the commands.
type app struct {
	jobs     *job.Service
	repo     repository.JobRepository
	store    *storage.MinioStore
	segments *cache.SegmentCache
	sweeper  *job.Sweeper

	closers []func()
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.DBEnabled {
		if err := db.ConnectGormDB(cfg); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { db.CloseGormDB() })
		a.repo = repository.NewGormJobRepository(db.GormDB)
	} else {
		a.repo = repository.NewMemoryJobRepository()
	}

	var jobCache *cache.JobCache
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { cache.CloseRedis() })
		jobCache = cache.NewJobCache(cache.RedisClient, cfg.JobTTL)
		a.segments = cache.NewSegmentCache(cache.RedisClient, cfg.JobTTL, maxCachedSegment)
		logger.Info("Connected to Redis", logger.String("host", cfg.RedisHost))
	}

	var mirror job.Mirror
	if cfg.MinioEnabled {
		store, err := storage.NewMinioStore(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		a.store = store
		mirror = store
	}

	a.sweeper = &job.Sweeper{
		OutputDir:   cfg.OutputDir,
		TTL:         cfg.JobTTL,
		MinInterval: time.Minute,
		Repo:        a.repo,
		Cache:       jobCache,
		Segments:    a.segments,
		Mirror:      mirror,
	}

	a.jobs = job.NewService(job.Options{
		OutputDir:  cfg.OutputDir,
		BaseURL:    cfg.BaseURL,
		KeepSource: cfg.KeepSource,
		JobTimeout: cfg.JobTimeout,
		HLS: video.HLSOptions{
			VideoCodec:   cfg.VideoCodec,
			AudioBitrate: cfg.AudioBitrate,
			SegmentTime:  cfg.HLSSegmentTime,
		},
		BotConfigured:  cfg.BotToken != "",
		SessionEnabled: cfg.SessionEnabled(),
	}, job.Deps{
		Repo:      a.repo,
		Cache:     jobCache,
		Processor: video.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath),
		Fetchers:  job.NewFetcherFactory(cfg),
		Mirror:    mirror,
		Signer:    auth.NewStreamSigner(cfg.StreamSecret, cfg.JobTTL),
		Sweeper:   a.sweeper,
	})
	a.closers = append(a.closers, a.jobs.Close)

	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
