package task

import (
	"context"
	"time"

	"fftransform/ffmpeg"
	"fftransform/transform"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Task is an asynchronous transform. Values returned by the Manager are
// snapshots and safe to read without locking.
type Task struct {
	ID          string      `json:"id"`
	Status      Status      `json:"status"`
	OutputPath  string      `json:"-"`
	DownloadURL string      `json:"downloadUrl,omitempty"`
	ErrorKind   ffmpeg.Kind `json:"errorKind,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   time.Time   `json:"startedAt,omitempty"`
	CompletedAt time.Time   `json:"completedAt,omitempty"`
	// Diagnostics is the tail of ffmpeg's stderr.
	Diagnostics string `json:"ffmpegOutput,omitempty"`

	job        *transform.Job
	cancelFunc context.CancelFunc
}

// Terminal reports whether the task will not change state again.
func (t *Task) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}
