package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tgstream/model"

	"gorm.io/gorm"
)

// ErrJobNotFound is returned when no job has the requested id.
var ErrJobNotFound = errors.New("job not found")

// JobRepository defines the interface for job record operations.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Job, error)
	Delete(ctx context.Context, id string) error
}

// gormJobRepository implements JobRepository on top of gorm.
type gormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a JobRepository backed by db.
func NewGormJobRepository(db *gorm.DB) JobRepository {
	return &gormJobRepository{db: db}
}

func (r *gormJobRepository) Create(ctx context.Context, job *model.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

func (r *gormJobRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

func (r *gormJobRepository) Update(ctx context.Context, job *model.Job) error {
	job.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Save(job)
	if res.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, res.Error)
	}
	return nil
}

func (r *gormJobRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Job, error) {
	var jobs []*model.Job
	err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return jobs, nil
}

func (r *gormJobRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Job{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// memoryJobRepository keeps jobs in process memory. Used when no database is configured.
type memoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryJobRepository creates an in-process JobRepository.
func NewMemoryJobRepository() JobRepository {
	return &memoryJobRepository{jobs: make(map[string]*model.Job)}
}

func (r *memoryJobRepository) Create(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memoryJobRepository) Get(_ context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memoryJobRepository) Update(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	job.UpdatedAt = time.Now()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memoryJobRepository) ListOlderThan(_ context.Context, cutoff time.Time) ([]*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Job
	for _, job := range r.jobs {
		if job.CreatedAt.Before(cutoff) {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryJobRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}
