package model

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-engine/internal/errors"
)

func validEntry() ActivityEntry {
	return ActivityEntry{
		ID:          "e-1",
		TenantID:    "acme",
		Description: "100 litres of diesel for company vehicles",
		Quantity:    100,
		Unit:        "L",
	}
}

func TestActivityEntryValidate(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(72 * time.Hour)
	tests := []struct {
		name    string
		mutate  func(*ActivityEntry)
		wantErr string
	}{
		{"valid", func(*ActivityEntry) {}, ""},
		{"valid with scope", func(e *ActivityEntry) { e.Scope = Scope1.Ptr() }, ""},
		{"missing id", func(e *ActivityEntry) { e.ID = "" }, "id failed required"},
		{"missing tenant", func(e *ActivityEntry) { e.TenantID = "" }, "tenant_id failed required"},
		{"zero quantity", func(e *ActivityEntry) { e.Quantity = 0 }, "quantity failed gt=0"},
		{"negative quantity", func(e *ActivityEntry) { e.Quantity = -3 }, "quantity failed gt=0"},
		{"infinite quantity", func(e *ActivityEntry) { e.Quantity = math.Inf(1) }, "quantity failed finite"},
		{"NaN quantity", func(e *ActivityEntry) { e.Quantity = math.NaN() }, "quantity failed finite"},
		{"scope out of range", func(e *ActivityEntry) { s := Scope(4); e.Scope = &s }, "scope failed max=3"},
		{"bad status", func(e *ActivityEntry) { e.Status = "done" }, "status failed oneof"},
		{"future date", func(e *ActivityEntry) { e.ActivityDate = &future }, "in the future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := validEntry()
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestActivityEntryValidateListsAllFields(t *testing.T) {
	t.Parallel()

	e := ActivityEntry{ID: "e-2"}
	err := e.Validate()
	require.Error(t, err)
	for _, field := range []string{"tenant_id", "description", "quantity", "unit"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestResultValidateInvariant(t *testing.T) {
	t.Parallel()

	ok := &CalculationResult{
		EntryID:        "e-1",
		TotalEmissions: decimal.RequireFromString("268"),
		EmissionsUnit:  EmissionsUnit,
		Method:         MethodRetrieval,
		Confidence:     0.9,
	}
	require.NoError(t, ok.Validate())
	assert.True(t, ok.Succeeded())

	withErr := *ok
	withErr.Error = &ResultError{Kind: ErrorKindTimeout, Message: "late"}
	require.Error(t, withErr.Validate())

	failed := Failed(&ActivityEntry{ID: "e-3", TenantID: "acme"}, ErrorKindMalformedResponse, "missing total_emissions", FallbackBelowThreshold)
	require.NoError(t, failed.Validate())
	assert.False(t, failed.Succeeded())
	assert.Equal(t, "acme", failed.TenantID)

	failedNoErr := *failed
	failedNoErr.Error = nil
	require.Error(t, failedNoErr.Validate())

	badConfidence := *ok
	badConfidence.Confidence = 1.2
	require.Error(t, badConfidence.Validate())

	negative := *ok
	negative.TotalEmissions = decimal.NewFromInt(-1)
	require.Error(t, negative.Validate())
}

func TestBatchSummaryRecord(t *testing.T) {
	t.Parallel()

	s := NewBatchSummary(4)
	s.RecordAlreadyCalculated()
	s.Record(&CalculationResult{Method: MethodRetrieval, TotalEmissions: decimal.RequireFromString("268"), EmissionsUnit: EmissionsUnit})
	s.Record(&CalculationResult{Method: MethodGenerative, TotalEmissions: decimal.RequireFromString("1.5"), EmissionsUnit: EmissionsUnit})
	s.Record(Failed(&ActivityEntry{ID: "e-9"}, ErrorKindTimeout, "deadline exceeded", FallbackNoCandidates))

	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.ByMethod[MethodRetrieval])
	assert.Equal(t, 1, s.ByMethod[MethodGenerative])
	assert.Equal(t, 1, s.ByMethod[MethodFailed])
	assert.Equal(t, "269.5", s.TotalEmissions.String())
	require.Len(t, s.Errors, 1)
	assert.Equal(t, EntryError{EntryID: "e-9", Kind: ErrorKindTimeout, Error: "deadline exceeded"}, s.Errors[0])
	assert.True(t, s.Consistent())
}

func TestBatchSummaryMerge(t *testing.T) {
	t.Parallel()

	a := NewBatchSummary(1)
	a.Record(&CalculationResult{Method: MethodRetrieval, TotalEmissions: decimal.NewFromInt(2), EmissionsUnit: EmissionsUnit})
	b := NewBatchSummary(2)
	b.RecordAlreadyCalculated()
	b.Record(Failed(&ActivityEntry{ID: "x"}, ErrorKindTimeout, "t", FallbackNone))

	a.Merge(b)
	assert.Equal(t, 3, a.Total)
	assert.Equal(t, 1, a.AlreadyCalculated)
	assert.True(t, a.Consistent())
}

func TestAttribution(t *testing.T) {
	t.Parallel()

	f := EmissionFactor{Source: "DEFRA", Region: "UK", Year: 2024}
	assert.Equal(t, "DEFRA (UK, 2024)", f.Attribution())
	f.Year = 0
	assert.Equal(t, "DEFRA (UK)", f.Attribution())
	f.Region = ""
	assert.Equal(t, "DEFRA", f.Attribution())
}
