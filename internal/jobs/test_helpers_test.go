package jobs

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/testutil"
)

const (
	// DefaultTestTimeout is the standard timeout for async test operations.
	DefaultTestTimeout = testutil.DefaultTestTimeout
	// fastPoll keeps the worker responsive in tests.
	fastPoll = testutil.FastPoll
)

// stubRunner succeeds every entry with 1 kg CO2e and records chunk sizes.
type stubRunner struct {
	mu     sync.Mutex
	chunks []int
	err    error
	block  chan struct{}
}

func (r *stubRunner) Run(ctx context.Context, entries []model.ActivityEntry, onProgress batch.ProgressFunc) (*model.BatchSummary, error) {
	r.mu.Lock()
	r.chunks = append(r.chunks, len(entries))
	block, err := r.block, r.err
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	if err != nil {
		return nil, err
	}

	s := model.NewBatchSummary(len(entries))
	for i := range entries {
		s.Record(&model.CalculationResult{
			EntryID:        entries[i].ID,
			TotalEmissions: decimal.NewFromInt(1),
			EmissionsUnit:  model.EmissionsUnit,
			Method:         model.MethodRetrieval,
			Confidence:     0.9,
		})
		if onProgress != nil {
			onProgress(i+1, len(entries))
		}
	}
	return s, nil
}

func (r *stubRunner) chunkSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.chunks...)
}

func newTestQueue(t *testing.T, runner Runner, opts Options) *Queue {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = fastPoll
	}
	q := NewQueue(runner, opts, logger.NewSlogLogger(nil, logger.LogLevelError, nil))
	q.Start(context.Background())
	t.Cleanup(func() { require.NoError(t, q.Stop(DefaultTestTimeout)) })
	return q
}

func waitForStatus(t *testing.T, q *Queue, id string, want Status) Job {
	t.Helper()
	return testutil.Poll(t, func() (Job, error) { return q.Get(id) },
		func(j Job) bool { return j.Status == want },
		"job "+id+" never reached "+want.String())
}

func makeEntries(n int) []model.ActivityEntry {
	out := make([]model.ActivityEntry, n)
	for i := range out {
		out[i] = model.ActivityEntry{
			ID: "e-" + strconv.Itoa(i), TenantID: "acme",
			Description: "diesel", Quantity: 1, Unit: "L",
		}
	}
	return out
}
