package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecoledger/carbon-engine/internal/model"
)

// ResultFilter narrows ListByCompany. Zero values mean no constraint.
type ResultFilter struct {
	TenantID string
	EntryID  string
	Method   model.Method
	Since    time.Time
	Until    time.Time
	// SucceededOnly hides failed attempts.
	SucceededOnly bool
	Limit         int
	Offset        int
}

// CalculationRepository is the calculation store.
type CalculationRepository interface {
	// Exists reports whether a successful result exists for the tenant's entry.
	Exists(ctx context.Context, tenantID, entryID string) (bool, error)
	// ExistingEntryIDs returns the subset of the tenant's entryIDs with a
	// successful result.
	ExistingEntryIDs(ctx context.Context, tenantID string, entryIDs []string) (map[string]struct{}, error)
	// Insert appends a result and returns its ID. A second successful result
	// for the same tenant and entry returns ErrDuplicateKey and writes nothing.
	Insert(ctx context.Context, result *model.CalculationResult) (string, error)
	// ListByCompany returns results for a tenant, newest first.
	ListByCompany(ctx context.Context, filter ResultFilter) ([]model.CalculationResult, error)
	// SumByCompany sums successful totals for a tenant in kg CO2e.
	SumByCompany(ctx context.Context, tenantID string) (decimal.Decimal, error)
}
