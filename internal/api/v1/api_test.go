package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-engine/internal/batch"
	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/jobs"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CalculateSingle(ctx context.Context, entry *model.ActivityEntry) *model.CalculationResult {
	args := m.Called(ctx, entry)
	return args.Get(0).(*model.CalculationResult)
}

func (m *mockService) CalculateBatch(ctx context.Context, entries []model.ActivityEntry, onProgress batch.ProgressFunc) (*model.BatchSummary, error) {
	args := m.Called(ctx, entries, onProgress)
	summary, _ := args.Get(0).(*model.BatchSummary)
	return summary, args.Error(1)
}

func (m *mockService) MaxBatchEntries() int {
	return m.Called().Int(0)
}

func (m *mockService) SubmitJob(tenantID string, entries []model.ActivityEntry) (jobs.Job, error) {
	args := m.Called(tenantID, entries)
	return args.Get(0).(jobs.Job), args.Error(1)
}

func (m *mockService) Job(id string) (jobs.Job, error) {
	args := m.Called(id)
	return args.Get(0).(jobs.Job), args.Error(1)
}

func (m *mockService) Jobs() []jobs.Job {
	return m.Called().Get(0).([]jobs.Job)
}

func (m *mockService) Ingest(ctx context.Context, entries []model.ActivityEntry) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

func (m *mockService) ProcessPending(ctx context.Context, tenantID string, limit int) (jobs.Job, error) {
	args := m.Called(ctx, tenantID, limit)
	return args.Get(0).(jobs.Job), args.Error(1)
}

func (m *mockService) Results(ctx context.Context, filter repository.ResultFilter) ([]model.CalculationResult, error) {
	args := m.Called(ctx, filter)
	results, _ := args.Get(0).([]model.CalculationResult)
	return results, args.Error(1)
}

func (m *mockService) TotalEmissions(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func setupTest(t *testing.T) (*echo.Echo, *mockService) {
	t.Helper()
	e := echo.New()
	svc := &mockService{}
	New(e, svc, logger.NewSlogLogger(nil, logger.LogLevelError, nil))
	t.Cleanup(func() { svc.AssertExpectations(t) })
	return e, svc
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCalculate(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("CalculateSingle", mock.Anything, mock.MatchedBy(func(entry *model.ActivityEntry) bool {
		return entry.ID == "e-1" && entry.Quantity == 100 && entry.Unit == "L"
	})).Return(&model.CalculationResult{
		EntryID:        "e-1",
		TotalEmissions: decimal.RequireFromString("268"),
		EmissionsUnit:  model.EmissionsUnit,
		Method:         model.MethodRetrieval,
		Confidence:     0.93,
	})

	rec := do(e, http.MethodPost, "/api/v1/calculate",
		`{"id":"e-1","tenant_id":"acme","description":"100 litres of diesel","quantity":100,"unit":"L"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, model.MethodRetrieval, res.Method)
	assert.Equal(t, "268", res.TotalEmissions.String())
}

func TestCalculateFailedResultIsStillOK(t *testing.T) {
	e, svc := setupTest(t)

	failed := model.Failed(&model.ActivityEntry{ID: "e-1"}, model.ErrorKindTimeout, "generative call timed out", model.FallbackBelowThreshold)
	svc.On("CalculateSingle", mock.Anything, mock.Anything).Return(failed)

	rec := do(e, http.MethodPost, "/api/v1/calculate", `{"id":"e-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"TIMEOUT"`)
	assert.Contains(t, rec.Body.String(), `"fallback_reason":"below_threshold"`)
}

func TestCalculateBadJSON(t *testing.T) {
	e, _ := setupTest(t)

	rec := do(e, http.MethodPost, "/api/v1/calculate", `{"quantity":"lots"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, decodeError(t, rec).Code)
}

func TestCalculateBatchFillsTenant(t *testing.T) {
	e, svc := setupTest(t)

	summary := model.NewBatchSummary(2)
	summary.Succeeded = 2
	svc.On("CalculateBatch", mock.Anything, mock.MatchedBy(func(entries []model.ActivityEntry) bool {
		return len(entries) == 2 && entries[0].TenantID == "acme" && entries[1].TenantID == "other"
	}), mock.Anything).Return(summary, nil)

	rec := do(e, http.MethodPost, "/api/v1/batch",
		`{"tenant_id":"acme","entries":[{"id":"a","description":"diesel","quantity":1,"unit":"L"},{"id":"b","tenant_id":"other","description":"x","quantity":1,"unit":"kg"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.BatchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Succeeded)
}

func TestCalculateBatchTooLarge(t *testing.T) {
	e, svc := setupTest(t)

	tooLarge := errors.Newf("%w: 600 entries, limit 500", batch.ErrBatchTooLarge).
		Category(errors.CategoryLimit).
		Build()
	svc.On("CalculateBatch", mock.Anything, mock.Anything, mock.Anything).Return(nil, tooLarge)
	svc.On("MaxBatchEntries").Return(500)

	rec := do(e, http.MethodPost, "/api/v1/batch", `{"entries":[{"id":"a"}]}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "/api/v1/jobs")
}

func TestCalculateBatchEmpty(t *testing.T) {
	e, _ := setupTest(t)

	rec := do(e, http.MethodPost, "/api/v1/batch", `{"entries":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJob(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("SubmitJob", "acme", mock.Anything).Return(jobs.Job{ID: "job-1", TenantID: "acme", Status: jobs.StatusPending, Total: 1, Chunks: 1}, nil)

	rec := do(e, http.MethodPost, "/api/v1/jobs", `{"tenant_id":"acme","entries":[{"id":"a","description":"diesel","quantity":1,"unit":"L"}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/v1/jobs/job-1", rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
}

func TestSubmitJobErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"queue full", errors.Newf("%w: maximum of 100 pending jobs reached", jobs.ErrQueueFull).Category(errors.CategoryLimit).Build(), http.StatusTooManyRequests},
		{"queue stopped", jobs.ErrQueueStopped, http.StatusServiceUnavailable},
		{"empty", errors.New(jobs.ErrEmptyJob).Category(errors.CategoryValidation).Build(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, svc := setupTest(t)
			svc.On("SubmitJob", "acme", mock.Anything).Return(jobs.Job{}, tt.err)

			rec := do(e, http.MethodPost, "/api/v1/jobs", `{"tenant_id":"acme","entries":[]}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSubmitJobRequiresTenant(t *testing.T) {
	e, _ := setupTest(t)

	rec := do(e, http.MethodPost, "/api/v1/jobs", `{"entries":[{"id":"a"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("Job", "job-1").Return(jobs.Job{ID: "job-1", Status: jobs.StatusRunning, Total: 10, Processed: 4}, nil)
	notFound := errors.Newf("%w: nope", jobs.ErrJobNotFound).Category(errors.CategoryNotFound).Build()
	svc.On("Job", "nope").Return(jobs.Job{}, notFound)

	rec := do(e, http.MethodGet, "/api/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":4`)

	rec = do(e, http.MethodGet, "/api/v1/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("Jobs").Return([]jobs.Job{{ID: "a"}, {ID: "b"}})

	rec := do(e, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestIngestAndProcess(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("Ingest", mock.Anything, mock.MatchedBy(func(entries []model.ActivityEntry) bool {
		return len(entries) == 1 && entries[0].TenantID == "acme"
	})).Return(1, nil)
	svc.On("ProcessPending", mock.Anything, "acme", 50).Return(jobs.Job{ID: "job-2"}, nil)

	rec := do(e, http.MethodPost, "/api/v1/entries", `{"tenant_id":"acme","entries":[{"id":"a","description":"diesel","quantity":1,"unit":"L"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ingested":1}`, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/v1/entries/process", `{"tenant_id":"acme","limit":50}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/v1/jobs/job-2", rec.Header().Get(echo.HeaderLocation))
}

func TestIngestValidationError(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("Ingest", mock.Anything, mock.Anything).Return(0, errors.ValidationError("1 invalid entries"))

	rec := do(e, http.MethodPost, "/api/v1/entries", `{"entries":[{"id":"a"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListResults(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("Results", mock.Anything, mock.MatchedBy(func(f repository.ResultFilter) bool {
		return f.TenantID == "acme" && f.Method == model.MethodGenerative && f.Limit == 20 &&
			f.Offset == 40 && f.SucceededOnly && f.Since.Year() == 2026
	})).Return([]model.CalculationResult{{EntryID: "e-1", Method: model.MethodGenerative}}, nil)

	rec := do(e, http.MethodGet,
		"/api/v1/results?tenant=acme&method=GENERATIVE&limit=20&offset=40&succeeded_only=true&since=2026-01-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got ResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 20, got.Limit)
}

func TestListResultsBadParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown method", "tenant=acme&method=GUESS"},
		{"bad limit", "tenant=acme&limit=many"},
		{"bad since", "tenant=acme&since=yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := setupTest(t)
			rec := do(e, http.MethodGet, "/api/v1/results?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListResultsClampsLimit(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("Results", mock.Anything, mock.MatchedBy(func(f repository.ResultFilter) bool {
		return f.Limit == maxResultsLimit
	})).Return([]model.CalculationResult{}, nil)

	rec := do(e, http.MethodGet, "/api/v1/results?tenant=acme&limit=100000", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTotalEmissions(t *testing.T) {
	e, svc := setupTest(t)

	svc.On("TotalEmissions", mock.Anything, "acme").Return(decimal.RequireFromString("546.5"), nil)
	svc.On("TotalEmissions", mock.Anything, "").Return(decimal.Zero, errors.ValidationError("tenant is required"))

	rec := do(e, http.MethodGet, "/api/v1/results/total?tenant=acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tenant_id":"acme","total_emissions":"546.5","emissions_unit":"kg CO2e"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/v1/results/total", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleErrorScrubsSecrets(t *testing.T) {
	e, svc := setupTest(t)

	leak := errors.Newf("upstream rejected key sk-abcdefghijklmnopqrstuvwxyz123456").Build()
	svc.On("TotalEmissions", mock.Anything, "acme").Return(decimal.Zero, leak)

	rec := do(e, http.MethodGet, "/api/v1/results/total?tenant=acme", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-abcdefghijklmnopqrstuvwxyz123456")
}
