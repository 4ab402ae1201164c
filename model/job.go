package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the processing state of a job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusTranscoding JobStatus = "transcoding"
	JobStatusReady       JobStatus = "ready"
	JobStatusFailed      JobStatus = "failed"
)

// JobMode says how the media is obtained.
type JobMode string

const (
	ModeEmbed   JobMode = "embed"   // no download, the post is embedded from t.me
	ModeBot     JobMode = "bot"     // forwarded through a bot and fetched via getFile
	ModeSession JobMode = "session" // downloaded with an MTProto user session
)

// Message categories rendered by the status page.
const (
	CategorySuccess = "success"
	CategoryDanger  = "danger"
)

// Job is one submitted post link and the artifacts produced for it.
// The ID doubles as the name of the job's output directory.
type Job struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	PostLink     string    `json:"postLink" gorm:"size:512"`
	Channel      string    `json:"channel" gorm:"size:128"`
	PostID       int       `json:"postId"`
	Mode         JobMode   `json:"mode" gorm:"size:16"`
	Status       JobStatus `json:"status" gorm:"size:16;index"`
	Message      string    `json:"message" gorm:"size:1024"`
	FileName     string    `json:"fileName,omitempty" gorm:"size:255"`
	FileSize     int64     `json:"fileSize,omitempty"`
	Duration     float32   `json:"duration,omitempty"`
	SegmentCount int       `json:"segmentCount,omitempty"`
	PlaylistPath string    `json:"playlistPath,omitempty" gorm:"size:512"` // Server-relative, e.g. /streams/<id>/playlist.m3u8
	Mirrored     bool      `json:"mirrored,omitempty"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewJob creates a pending job with a fresh random identifier.
func NewJob(postLink string, mode JobMode) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		PostLink:  postLink,
		Mode:      mode,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == JobStatusReady || j.Status == JobStatusFailed
}

// Category maps the status to the message category shown to the user.
func (j *Job) Category() string {
	if j.Status == JobStatusFailed {
		return CategoryDanger
	}
	return CategorySuccess
}

// IsJobID reports whether s has the shape of a job identifier.
func IsJobID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}
