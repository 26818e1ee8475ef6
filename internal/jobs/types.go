// Package jobs runs batches that exceed the interactive limit in the
// background, chunk by chunk, and tracks their progress.
package jobs

import (
	"context"
	"time"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// Common errors returned by queue operations.
var (
	ErrQueueStopped = errors.NewStd("job queue has been stopped")
	ErrJobNotFound  = errors.NewStd("job not found")
	ErrQueueFull    = errors.NewStd("job queue is full")
	ErrEmptyJob     = errors.NewStd("job has no entries")
)

// Runner processes one chunk. *batch.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, entries []model.ActivityEntry, onProgress batch.ProgressFunc) (*model.BatchSummary, error)
}

// Status is the lifecycle state of a job.
type Status int

const (
	// StatusPending means the job waits for the worker.
	StatusPending Status = iota
	// StatusRunning means chunks are being processed.
	StatusRunning
	// StatusCompleted means every chunk was processed. Individual entries may
	// still have failed; see the summary.
	StatusCompleted
	// StatusFailed means a chunk could not be run at all.
	StatusFailed
	// StatusCancelled means the queue stopped before the job finished.
	StatusCancelled
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders the status as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for candidate := StatusPending; candidate <= StatusCancelled; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return errors.Newf("unknown job status %q", text).
		Component("jobs").
		Category(errors.CategoryValidation).
		Build()
}

// Terminal reports whether the job will not change any more.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Stats is a point-in-time snapshot of the queue.
type Stats struct {
	TotalJobs      int `json:"total_jobs"`
	CompletedJobs  int `json:"completed_jobs"`
	FailedJobs     int `json:"failed_jobs"`
	CancelledJobs  int `json:"cancelled_jobs"`
	ArchivedJobs   int `json:"archived_jobs"`
	PendingJobs    int `json:"pending_jobs"`
	RunningJobs    int `json:"running_jobs"`
	MaxPendingJobs int `json:"max_pending_jobs"`
	// QueueUtilization is pending jobs as a percentage of capacity.
	QueueUtilization float64 `json:"queue_utilization"`
	EntriesProcessed int     `json:"entries_processed"`
}

// Options configures a Queue.
type Options struct {
	// ChunkSize is the number of entries handed to the runner at a time.
	ChunkSize int
	// MaxPending bounds jobs waiting for the worker.
	MaxPending int
	// MaxArchived bounds finished jobs kept for status queries.
	MaxArchived int
	// PollInterval is how often the worker checks for work when not woken.
	PollInterval time.Duration
}

// Defaults for Options.
const (
	DefaultChunkSize    = 250
	DefaultMaxPending   = 100
	DefaultMaxArchived  = 200
	DefaultPollInterval = time.Second
)

// DefaultOptions returns the default queue settings.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		MaxPending:   DefaultMaxPending,
		MaxArchived:  DefaultMaxArchived,
		PollInterval: DefaultPollInterval,
	}
}
