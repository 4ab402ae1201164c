// Package job turns a post link into a servable HLS stream.
package job

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tgstream/cache"
	"tgstream/core/auth"
	"tgstream/core/link"
	"tgstream/core/video"
	"tgstream/logger"
	"tgstream/model"
	"tgstream/repository"
)

// Directory names inside a job directory.
const (
	HLSDirName     = "hls"
	stagingDirName = "hls.partial"
)

// Request is one submitted form.
type Request struct {
	Link       string
	TargetChat string // optional override of the configured target chat
	BotToken   string // optional override of the configured bot token
}

// Result is what the status page renders.
type Result struct {
	Job         *model.Job
	Category    string
	Message     string
	EmbedURL    string
	PlaylistURL string
}

// Mirror copies finished outputs to object storage.
type Mirror interface {
	UploadDir(ctx context.Context, jobID, dir string) (int, error)
	DeleteJob(ctx context.Context, jobID string) (int, error)
}

// Options configure a Service.
type Options struct {
	OutputDir      string
	BaseURL        string
	KeepSource     bool
	JobTimeout     time.Duration
	HLS            video.HLSOptions
	BotConfigured  bool // a bot token is configured server-side
	SessionEnabled bool
}

// Deps are the collaborators of a Service. Only Repo, Processor and Fetchers are required.
type Deps struct {
	Repo      repository.JobRepository
	Cache     *cache.JobCache
	Processor video.Processor
	Fetchers  FetcherFactory
	Mirror    Mirror
	Signer    *auth.StreamSigner
	Broker    *Broker
	Sweeper   *Sweeper
}

// Service runs jobs.
type Service struct {
	opts Options
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service.
func NewService(opts Options, deps Deps) *Service {
	if deps.Broker == nil {
		deps.Broker = NewBroker()
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{opts: opts, deps: deps, ctx: ctx, cancel: cancel}
}

// Broker returns the status broker.
func (s *Service) Broker() *Broker {
	return s.deps.Broker
}

// Signer returns the stream token signer, nil when signing is off.
func (s *Service) Signer() *auth.StreamSigner {
	return s.deps.Signer
}

// Sweeper returns the cleanup sweeper, possibly nil.
func (s *Service) Sweeper() *Sweeper {
	return s.deps.Sweeper
}

// JobDir is the directory owned by a job.
func (s *Service) JobDir(id string) string {
	return filepath.Join(s.opts.OutputDir, id)
}

// HLSDir is the directory holding a finished job's playlist and segments.
func (s *Service) HLSDir(id string) string {
	return filepath.Join(s.opts.OutputDir, id, HLSDirName)
}

// Close stops background jobs and waits for them to finish.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Run handles one request end-to-end and returns the status to render.
func (s *Service) Run(ctx context.Context, req Request) *Result {
	job, post, res := s.start(ctx, req)
	if job == nil {
		return res
	}
	s.process(ctx, job, post, req)
	return s.resultFor(job, post)
}

// Submit starts a request in the background and returns the accepted job.
func (s *Service) Submit(ctx context.Context, req Request) *Result {
	job, post, res := s.start(ctx, req)
	if job == nil {
		return res
	}

	accepted := *job
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(s.ctx, job, post, req)
	}()

	return &Result{
		Job:      &accepted,
		Category: model.CategorySuccess,
		Message:  MsgProcessing,
		EmbedURL: post.EmbedURL(),
	}
}

// Get returns the current state of a job.
func (s *Service) Get(ctx context.Context, id string) (*model.Job, error) {
	if job, err := s.deps.Cache.Get(ctx, id); err != nil {
		logger.Warn("Job cache lookup failed", logger.String("jobId", id), logger.ErrorField(err))
	} else if job != nil {
		return job, nil
	}

	job, err := s.deps.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.deps.Cache.Set(ctx, job)
	return job, nil
}

// PlaylistURL returns the playable URL of a ready job, signed when signing is on.
func (s *Service) PlaylistURL(job *model.Job) string {
	if job == nil || job.Status != model.JobStatusReady || job.PlaylistPath == "" {
		return ""
	}
	u := s.opts.BaseURL + job.PlaylistPath
	if s.deps.Signer.Enabled() {
		token, err := s.deps.Signer.Sign(job.ID)
		if err != nil {
			logger.Error("Failed to sign playlist URL", logger.String("jobId", job.ID), logger.ErrorField(err))
			return ""
		}
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// Mode picks how a request is served.
func (s *Service) Mode(req Request) model.JobMode {
	switch {
	case req.BotToken != "" || s.opts.BotConfigured:
		return model.ModeBot
	case s.opts.SessionEnabled:
		return model.ModeSession
	}
	return model.ModeEmbed
}

// start validates the request and creates the job. A nil job means res is final.
func (s *Service) start(ctx context.Context, req Request) (*model.Job, *link.Post, *Result) {
	if s.deps.Sweeper != nil {
		s.deps.Sweeper.MaybeSweep(ctx)
	}

	post, err := link.Parse(req.Link)
	if err != nil {
		return nil, nil, &Result{Category: model.CategoryDanger, Message: err.Error()}
	}

	mode := s.Mode(req)
	if mode == model.ModeEmbed && post.Private() {
		return nil, post, &Result{Category: model.CategoryDanger, Message: MsgNeedsDownload}
	}
	if mode == model.ModeEmbed {
		logger.Info("Serving embed only", logger.String("post", post.String()))
		return nil, post, &Result{
			Category: model.CategorySuccess,
			Message:  MsgReady,
			EmbedURL: post.EmbedURL(),
		}
	}

	job := model.NewJob(post.String(), mode)
	job.Channel = post.Channel
	if post.Private() {
		job.Channel = post.FromChat()
	}
	job.PostID = post.PostID
	job.Status = model.JobStatusDownloading

	if err := s.deps.Repo.Create(ctx, job); err != nil {
		logger.Error("Failed to create job", logger.String("post", post.String()), logger.ErrorField(err))
		return nil, post, &Result{Category: model.CategoryDanger, Message: MsgInternal, EmbedURL: post.EmbedURL()}
	}
	s.deps.Cache.Set(ctx, job)
	s.deps.Broker.Publish(job)

	logger.Info("Job created",
		logger.String("jobId", job.ID),
		logger.String("post", post.String()),
		logger.String("mode", string(mode)))
	return job, post, nil
}

// process runs fetch, transcode and publish for job, leaving it ready or failed.
func (s *Service) process(ctx context.Context, job *model.Job, post *link.Post, req Request) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()

	started := time.Now()
	if err := s.pipeline(ctx, job, post, req); err != nil {
		s.fail(job, err)
		return
	}

	logger.Info("Job ready",
		logger.String("jobId", job.ID),
		logger.Int("segments", job.SegmentCount),
		logger.Duration("elapsed", time.Since(started)))
}

func (s *Service) pipeline(ctx context.Context, job *model.Job, post *link.Post, req Request) error {
	dir := s.JobDir(job.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return atStage(stageSetup, fmt.Errorf("create job directory: %w", err))
	}

	fetcher, err := s.deps.Fetchers(job.Mode, req)
	if err != nil {
		return atStage(stageFetch, err)
	}
	media, err := fetcher.Fetch(ctx, post, dir)
	if err != nil {
		return atStage(stageFetch, err)
	}
	job.FileName = media.FileName
	job.FileSize = media.Size
	s.update(ctx, job, model.JobStatusTranscoding, "")

	staging := filepath.Join(dir, stagingDirName)
	out, err := s.deps.Processor.ProcessToHLS(ctx, media.Path, staging, s.opts.HLS)
	if err != nil {
		return atStage(stageConvert, err)
	}
	// the playlist only becomes visible once complete
	if err := os.Rename(staging, s.HLSDir(job.ID)); err != nil {
		return atStage(stageConvert, fmt.Errorf("publish hls output: %w", err))
	}
	job.SegmentCount = out.SegmentCount
	job.Duration = out.Duration

	if !s.opts.KeepSource {
		if err := os.Remove(media.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove source file", logger.String("path", media.Path), logger.ErrorField(err))
		}
	}

	if s.deps.Mirror != nil {
		if _, err := s.deps.Mirror.UploadDir(ctx, job.ID, s.HLSDir(job.ID)); err != nil {
			logger.Warn("Failed to mirror job output, serving from disk only",
				logger.String("jobId", job.ID),
				logger.ErrorField(err))
		} else {
			job.Mirrored = true
		}
	}

	job.PlaylistPath = "/streams/" + job.ID + "/" + video.PlaylistName
	s.update(ctx, job, model.JobStatusReady, MsgReady)
	return nil
}

// fail records err on job and removes whatever the job produced.
func (s *Service) fail(job *model.Job, err error) {
	logger.Error("Job failed",
		logger.String("jobId", job.ID),
		logger.String("post", job.PostLink),
		logger.ErrorField(err))

	// the request context may already be done
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if rmErr := os.RemoveAll(s.JobDir(job.ID)); rmErr != nil {
		logger.Warn("Failed to remove job directory", logger.String("jobId", job.ID), logger.ErrorField(rmErr))
	}
	if job.Mirrored && s.deps.Mirror != nil {
		s.deps.Mirror.DeleteJob(ctx, job.ID)
		job.Mirrored = false
	}
	job.PlaylistPath = ""
	s.update(ctx, job, model.JobStatusFailed, userMessage(err))
}

func (s *Service) update(ctx context.Context, job *model.Job, status model.JobStatus, message string) {
	job.Status = status
	job.Message = message
	if err := s.deps.Repo.Update(ctx, job); err != nil {
		logger.Warn("Failed to persist job status",
			logger.String("jobId", job.ID),
			logger.String("status", string(status)),
			logger.ErrorField(err))
	}
	s.deps.Cache.Set(ctx, job)
	s.deps.Broker.Publish(job)
}

func (s *Service) resultFor(job *model.Job, post *link.Post) *Result {
	snapshot := *job
	return &Result{
		Job:         &snapshot,
		Category:    job.Category(),
		Message:     job.Message,
		EmbedURL:    post.EmbedURL(),
		PlaylistURL: s.PlaylistURL(job),
	}
}
