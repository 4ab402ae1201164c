package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tgstream/model"
	"tgstream/repository"
)

func makeJobDir(t *testing.T, root, id string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(filepath.Join(dir, HLSDirName), 0755); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(dir, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSweepRemovesExpiredJobs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	repo := repository.NewMemoryJobRepository()
	mirror := &fakeMirror{}

	old := model.NewJob("https://t.me/chan/1", model.ModeBot)
	old.Status = model.JobStatusReady
	old.CreatedAt = time.Now().Add(-3 * time.Hour)
	repo.Create(ctx, old)
	oldDir := makeJobDir(t, root, old.ID, 3*time.Hour)

	fresh := model.NewJob("https://t.me/chan/2", model.ModeBot)
	fresh.Status = model.JobStatusReady
	repo.Create(ctx, fresh)
	freshDir := makeJobDir(t, root, fresh.ID, time.Minute)

	// failed job whose directory is already gone
	failed := model.NewJob("https://t.me/chan/3", model.ModeBot)
	failed.Status = model.JobStatusFailed
	failed.CreatedAt = time.Now().Add(-2 * time.Hour)
	repo.Create(ctx, failed)

	// still running despite its age
	running := model.NewJob("https://t.me/chan/4", model.ModeBot)
	running.Status = model.JobStatusTranscoding
	running.CreatedAt = time.Now().Add(-2 * time.Hour)
	repo.Create(ctx, running)

	// unrelated directory is never touched
	other := filepath.Join(root, "keep-me")
	os.MkdirAll(other, 0755)
	os.Chtimes(other, time.Now().Add(-5*time.Hour), time.Now().Add(-5*time.Hour))

	s := &Sweeper{OutputDir: root, TTL: time.Hour, Repo: repo, Mirror: mirror}
	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 removed jobs, got %d", n)
	}

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Errorf("Expected old directory removed, got %v", err)
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Errorf("Expected fresh directory kept, got %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("Expected unrelated directory kept, got %v", err)
	}

	for _, id := range []string{old.ID, failed.ID} {
		if _, err := repo.Get(ctx, id); !errors.Is(err, repository.ErrJobNotFound) {
			t.Errorf("Expected record %s deleted, got %v", id, err)
		}
	}
	for _, id := range []string{fresh.ID, running.ID} {
		if _, err := repo.Get(ctx, id); err != nil {
			t.Errorf("Expected record %s kept, got %v", id, err)
		}
	}
	if len(mirror.deleted) != 2 {
		t.Errorf("Expected mirrored objects of 2 jobs deleted, got %v", mirror.deleted)
	}
}

func TestSweepMissingOutputDir(t *testing.T) {
	s := &Sweeper{OutputDir: filepath.Join(t.TempDir(), "nope"), TTL: time.Hour}
	if n, err := s.Sweep(context.Background()); n != 0 || err != nil {
		t.Errorf("Expected no-op, got %d (%v)", n, err)
	}
}

func TestMaybeSweepThrottles(t *testing.T) {
	root := t.TempDir()
	s := &Sweeper{OutputDir: root, TTL: time.Hour, MinInterval: time.Hour}

	s.MaybeSweep(context.Background())
	dir := makeJobDir(t, root, model.NewJob("x", model.ModeBot).ID, 2*time.Hour)
	s.MaybeSweep(context.Background())

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected second pass to be skipped, got %v", err)
	}
}

func TestBroker(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("a")
	if b.Subscribers("a") != 1 {
		t.Fatalf("Expected one subscriber")
	}

	job := &model.Job{ID: "a", Status: model.JobStatusTranscoding}
	b.Publish(job)
	b.Publish(&model.Job{ID: "b"})
	job.Status = model.JobStatusReady

	got := <-ch
	if got.Status != model.JobStatusTranscoding {
		t.Errorf("Expected snapshot, got %s", got.Status)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("Expected channel closed after cancel")
	}
	if b.Subscribers("a") != 0 {
		t.Error("Expected no subscribers after cancel")
	}
	b.Publish(job)
}
