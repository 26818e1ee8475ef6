package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/conf"
	"github.com/ecoledger/carbon-engine/internal/datastore"
	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/generative"
	"github.com/ecoledger/carbon-engine/internal/jobs"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/testutil"
)

const seed = `
factors:
  - description: Diesel fuel
    source: DEFRA
    value: 2.68
    unit: kg CO2e/L
    region: UK
    year: 2024
  - description: Grid electricity
    source: DEFRA
    value: 0.207
    unit: kg CO2e/kWh
`

// keywordEmbedder maps descriptions onto three orthogonal axes.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "diesel"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(lower, "electricity"):
		return []float32{0, 1, 0}, nil
	}
	return []float32{0, 0, 1}, nil
}

type fixedCalculator struct {
	calls atomic.Int32
}

func (c *fixedCalculator) Estimate(_ context.Context, req generative.Request) (*generative.Estimate, error) {
	c.calls.Add(1)
	return &generative.Estimate{
		EmissionFactor:     0.5,
		EmissionFactorUnit: "kg CO2e/kg",
		TotalEmissions:     0.5 * req.Quantity,
		EmissionsUnit:      "kg CO2e",
		Scope:              model.Scope3,
		Source:             "model estimate",
		Confidence:         0.7,
		Warnings:           []string{},
	}, nil
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Engine: conf.EngineSettings{
			SimilarityThreshold:   0.75,
			RetrievalConcurrency:  4,
			GenerativeConcurrency: 2,
			GenerativeTimeoutMs:   5000,
			TopK:                  5,
			MaxInteractiveEntries: 10,
			ReviewConfidence:      0.6,
		},
		Generative: conf.GenerativeSettings{Enabled: true},
		Database:   conf.DatabaseSettings{Type: "sqlite"},
		Jobs:       conf.JobsSettings{MaxPending: 10, MaxArchived: 10, ChunkSize: 4},
	}
}

func newTestService(t *testing.T) (*Service, *fixedCalculator) {
	t.Helper()
	log := logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	db, err := datastore.OpenMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })

	calc := &fixedCalculator{}
	svc, err := New(testSettings(), log, WithDB(db), WithEmbedder(keywordEmbedder{}), WithCalculator(calc))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, svc.Close()) })

	path := filepath.Join(t.TempDir(), "factors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))
	n, err := svc.ImportCorpus(t.Context(), path)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	return svc, calc
}

func entry(id, description string, quantity float64, unit string) model.ActivityEntry {
	return model.ActivityEntry{ID: id, TenantID: "acme", Description: description, Quantity: quantity, Unit: unit}
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestCalculateSingleDoesNotPersist(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()

	e := entry("e-1", "100 litres of diesel for company vehicles", 100, "L")
	res := svc.CalculateSingle(ctx, &e)
	require.True(t, res.Succeeded())
	assert.Equal(t, model.MethodRetrieval, res.Method)
	assert.Equal(t, "268", res.TotalEmissions.String())

	stored, err := svc.Results(ctx, repository.ResultFilter{TenantID: "acme"})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCalculateBatchPersistsAndDeduplicates(t *testing.T) {
	svc, calc := newTestService(t)
	ctx := t.Context()

	entries := []model.ActivityEntry{
		entry("e-1", "diesel for generators", 100, "L"),
		entry("e-2", "office paper", 50, "kg"),
	}
	summary, err := svc.CalculateBatch(ctx, entries, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.ByMethod[model.MethodRetrieval])
	assert.Equal(t, 1, summary.ByMethod[model.MethodGenerative])
	assert.Equal(t, "293", summary.TotalEmissions.String())
	assert.Equal(t, int32(1), calc.calls.Load())

	again, err := svc.CalculateBatch(ctx, entries, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, again.AlreadyCalculated)
	assert.Equal(t, int32(1), calc.calls.Load(), "already calculated entries are not re-estimated")

	total, err := svc.TotalEmissions(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "293", total.String())

	results, err := svc.Results(ctx, repository.ResultFilter{TenantID: "acme", Method: model.MethodGenerative})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "e-2", results[0].EntryID)
}

func TestCalculateBatchTooLarge(t *testing.T) {
	svc, _ := newTestService(t)

	entries := make([]model.ActivityEntry, svc.MaxBatchEntries()+1)
	_, err := svc.CalculateBatch(t.Context(), entries, nil)
	require.ErrorIs(t, err, batch.ErrBatchTooLarge)
}

func TestSubmitJobRunsInChunks(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Start(t.Context())

	var entries []model.ActivityEntry
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		entries = append(entries, entry(id, "diesel delivery", float64(i+1), "L"))
	}
	job, err := svc.SubmitJob("acme", entries)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Chunks)

	got := testutil.Poll(t, func() (jobs.Job, error) { return svc.Job(job.ID) },
		func(j jobs.Job) bool { return j.Status == jobs.StatusCompleted },
		"job did not complete")
	assert.Equal(t, 6, got.Summary.Succeeded)
	assert.Equal(t, 6, got.Processed)
	assert.Len(t, svc.Jobs(), 1)
	assert.Equal(t, 1, svc.JobStats().CompletedJobs)
}

func TestIngestAndProcessPending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()
	svc.Start(ctx)

	n, err := svc.Ingest(ctx, []model.ActivityEntry{
		entry("p-1", "diesel", 10, "L"),
		entry("p-2", "grid electricity", 100, "kWh"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	job, err := svc.ProcessPending(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Total)

	testutil.Poll(t, func() (jobs.Job, error) { return svc.Job(job.ID) },
		func(j jobs.Job) bool { return j.Status.Terminal() },
		"job did not finish")

	_, err = svc.ProcessPending(ctx, "acme", 0)
	require.ErrorIs(t, err, jobs.ErrEmptyJob, "processed entries are no longer pending")
}

func TestIngestRejectsInvalidEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.Ingest(ctx, []model.ActivityEntry{
		entry("ok", "diesel", 10, "L"),
		entry("bad", "", 10, "L"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = svc.ProcessPending(ctx, "acme", 0)
	require.ErrorIs(t, err, jobs.ErrEmptyJob, "nothing was stored")
}

func TestTenantRequired(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Results(t.Context(), repository.ResultFilter{})
	require.Error(t, err)
	_, err = svc.TotalEmissions(t.Context(), "")
	require.Error(t, err)
	_, err = svc.ProcessPending(t.Context(), "", 0)
	require.Error(t, err)
}

func TestCorpusSize(t *testing.T) {
	svc, _ := newTestService(t)

	n, err := svc.CorpusSize(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
