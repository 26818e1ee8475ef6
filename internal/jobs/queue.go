package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/observability/metrics"
)

// Queue runs submitted jobs one at a time on a background worker. Jobs are
// not retried: a failed or cancelled job is re-submitted by the caller, and
// entries it already settled are skipped by deduplication.
type Queue struct {
	mu       sync.Mutex
	jobs     map[string]*job
	pending  []*job
	archived []*job
	stats    Stats

	runner  Runner
	opts    Options
	metrics metrics.Recorder
	log     logger.Logger

	wake      chan struct{}
	stopCh    chan struct{}
	worker    sync.WaitGroup
	isRunning bool
	cancel    context.CancelFunc
	now       func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics records job transitions.
func WithMetrics(rec metrics.Recorder) Option {
	return func(q *Queue) {
		if rec != nil {
			q.metrics = rec
		}
	}
}

// NewQueue creates a stopped queue. Zero options fall back to defaults.
func NewQueue(runner Runner, opts Options, log logger.Logger, options ...Option) *Queue {
	def := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = def.MaxPending
	}
	if opts.MaxArchived <= 0 {
		opts.MaxArchived = def.MaxArchived
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}

	q := &Queue{
		jobs:    make(map[string]*job),
		runner:  runner,
		opts:    opts,
		metrics: metrics.NewNoOpRecorder(),
		log:     logger.Or(log, "jobs"),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	for _, o := range options {
		o(q)
	}
	q.stats.MaxPendingJobs = opts.MaxPending
	return q
}

// Start launches the worker. Calling Start on a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return
	}
	q.isRunning = true
	q.stopCh = make(chan struct{})

	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.worker.Go(func() {
		q.process(workerCtx)
	})
	q.log.Info("job queue started",
		logger.Int("chunk_size", q.opts.ChunkSize),
		logger.Int("max_pending", q.opts.MaxPending))
}

// Stop cancels the running job and waits up to timeout for the worker.
// Pending jobs are marked cancelled.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.worker.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.Newf("timed out waiting for job worker after %v", timeout).
			Component("jobs").
			Category(errors.CategoryTimeout).
			Build()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.pending {
		q.finishLocked(j, StatusCancelled, "queue stopped before the job started")
	}
	q.pending = nil
	q.log.Info("job queue stopped")
	return nil
}

// Submit enqueues entries as one job.
func (q *Queue) Submit(tenantID string, entries []model.ActivityEntry) (Job, error) {
	if len(entries) == 0 {
		return Job{}, errors.New(ErrEmptyJob).
			Component("jobs").
			Category(errors.CategoryValidation).
			Build()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return Job{}, ErrQueueStopped
	}
	if len(q.pending) >= q.opts.MaxPending {
		return Job{}, errors.Newf("%w: maximum of %d pending jobs reached", ErrQueueFull, q.opts.MaxPending).
			Component("jobs").
			Category(errors.CategoryLimit).
			Build()
	}

	owned := make([]model.ActivityEntry, len(entries))
	copy(owned, entries)

	j := &job{
		Job: Job{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Status:    StatusPending,
			Total:     len(owned),
			Chunks:    (len(owned) + q.opts.ChunkSize - 1) / q.opts.ChunkSize,
			CreatedAt: q.now(),
		},
		entries: owned,
	}
	q.jobs[j.ID] = j
	q.pending = append(q.pending, j)
	q.stats.TotalJobs++
	q.metrics.RecordOperation(metrics.OpJob, StatusPending.String())

	select {
	case q.wake <- struct{}{}:
	default:
	}

	q.log.Info("job submitted",
		logger.String("job_id", j.ID),
		logger.String("tenant_id", tenantID),
		logger.Int("entries", j.Total),
		logger.Int("chunks", j.Chunks))
	return j.snapshot(), nil
}

// Get returns a snapshot of a job.
func (q *Queue) Get(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return Job{}, errors.Newf("%w: %s", ErrJobNotFound, id).
			Component("jobs").
			Category(errors.CategoryNotFound).
			Context("job_id", id).
			Build()
	}
	return j.snapshot(), nil
}

// List returns snapshots of all known jobs, oldest first.
func (q *Queue) List() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.archived {
		out = append(out, j.snapshot())
	}
	for _, j := range q.jobs {
		if !j.Status.Terminal() {
			out = append(out, j.snapshot())
		}
	}
	sortByCreated(out)
	return out
}

// Stats returns a snapshot of the queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.PendingJobs = len(q.pending)
	s.ArchivedJobs = len(q.archived)
	if s.MaxPendingJobs > 0 {
		s.QueueUtilization = float64(s.PendingJobs) / float64(s.MaxPendingJobs) * 100
	}
	return s
}

func (q *Queue) process(ctx context.Context) {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		for q.runNext(ctx) {
		}
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
	}
}

// runNext runs the oldest pending job and reports whether there was one.
func (q *Queue) runNext(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	started := q.now()
	j.Status = StatusRunning
	j.StartedAt = &started
	j.Summary = model.NewBatchSummary(0)
	q.stats.RunningJobs++
	entries := j.entries
	q.mu.Unlock()

	q.metrics.RecordOperation(metrics.OpJob, StatusRunning.String())
	log := q.log.With(logger.String("job_id", j.ID))
	log.Info("job started", logger.Int("entries", len(entries)))

	status, failure := q.execute(ctx, j, entries)

	q.mu.Lock()
	q.stats.RunningJobs--
	q.finishLocked(j, status, failure)
	q.mu.Unlock()

	log.Info("job finished",
		logger.String("status", status.String()),
		logger.Duration("elapsed", q.now().Sub(started)))
	return true
}

func (q *Queue) execute(ctx context.Context, j *job, entries []model.ActivityEntry) (Status, string) {
	base := 0
	for i, part := range chunk(entries, q.opts.ChunkSize) {
		if ctx.Err() != nil {
			return StatusCancelled, fmt.Sprintf("cancelled after %d of %d chunks", i, j.Chunks)
		}

		offset := base
		summary, err := q.runner.Run(ctx, part, func(completed, _ int) {
			q.mu.Lock()
			j.Processed = offset + completed
			q.stats.EntriesProcessed++
			q.mu.Unlock()
		})
		if err != nil {
			q.log.Error("job chunk failed",
				logger.String("job_id", j.ID),
				logger.Int("chunk", i),
				logger.Error(err))
			return StatusFailed, err.Error()
		}

		base += len(part)
		q.mu.Lock()
		j.Summary.Merge(summary)
		j.Processed = base
		j.ChunksDone = i + 1
		q.mu.Unlock()
	}
	return StatusCompleted, ""
}

// finishLocked moves j to a terminal status and archives it. q.mu must be held.
func (q *Queue) finishLocked(j *job, status Status, failure string) {
	finished := q.now()
	j.Status = status
	j.Error = failure
	j.FinishedAt = &finished
	j.entries = nil

	switch status {
	case StatusCompleted:
		q.stats.CompletedJobs++
	case StatusFailed:
		q.stats.FailedJobs++
	case StatusCancelled:
		q.stats.CancelledJobs++
	}
	q.metrics.RecordOperation(metrics.OpJob, status.String())

	q.archived = append(q.archived, j)
	if excess := len(q.archived) - q.opts.MaxArchived; excess > 0 {
		for _, old := range q.archived[:excess] {
			delete(q.jobs, old.ID)
		}
		q.archived = q.archived[excess:]
	}
}
