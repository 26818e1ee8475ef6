package jobs

import (
	"slices"
	"time"

	"github.com/ecoledger/carbon-engine/internal/model"
)

// Job is a snapshot of an asynchronous batch.
type Job struct {
	ID         string              `json:"id"`
	TenantID   string              `json:"tenant_id"`
	Status     Status              `json:"status"`
	Total      int                 `json:"total"`
	Processed  int                 `json:"processed"`
	Chunks     int                 `json:"chunks"`
	ChunksDone int                 `json:"chunks_done"`
	Summary    *model.BatchSummary `json:"summary,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Progress returns processed entries as a fraction of the total.
func (j *Job) Progress() float64 {
	if j.Total == 0 {
		return 1
	}
	return float64(j.Processed) / float64(j.Total)
}

// job is the mutable queue record. All fields are guarded by Queue.mu.
type job struct {
	Job
	entries []model.ActivityEntry
}

// snapshot copies the job for callers outside the queue lock.
func (j *job) snapshot() Job {
	out := j.Job
	if j.Summary != nil {
		s := *j.Summary
		s.ByMethod = make(map[model.Method]int, len(j.Summary.ByMethod))
		for m, n := range j.Summary.ByMethod {
			s.ByMethod[m] = n
		}
		s.Errors = append([]model.EntryError(nil), j.Summary.Errors...)
		out.Summary = &s
	}
	return out
}

func chunk(entries []model.ActivityEntry, size int) [][]model.ActivityEntry {
	if size <= 0 {
		size = len(entries)
	}
	out := make([][]model.ActivityEntry, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		out = append(out, entries[start:end])
	}
	return out
}

func sortByCreated(list []Job) {
	slices.SortStableFunc(list, func(a, b Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
