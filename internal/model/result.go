package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EmissionsUnit is the canonical unit of every total.
const EmissionsUnit = "kg CO2e"

// Method is the strategy that produced a result.
type Method string

const (
	MethodRetrieval  Method = "RETRIEVAL"
	MethodGenerative Method = "GENERATIVE"
	MethodFailed     Method = "FAILED"
)

func (m Method) String() string { return string(m) }

// Valid reports whether m is one of the three known methods.
func (m Method) Valid() bool {
	switch m {
	case MethodRetrieval, MethodGenerative, MethodFailed:
		return true
	}
	return false
}

// ErrorKind classifies a FAILED result.
type ErrorKind string

const (
	ErrorKindEmbeddingUnavailable ErrorKind = "EMBEDDING_UNAVAILABLE"
	ErrorKindMalformedResponse    ErrorKind = "MALFORMED_RESPONSE"
	ErrorKindTimeout              ErrorKind = "TIMEOUT"
	ErrorKindPersistence          ErrorKind = "PERSISTENCE_ERROR"
	ErrorKindBothMethodsFailed    ErrorKind = "BOTH_METHODS_FAILED"
	ErrorKindInvalidEntry         ErrorKind = "INVALID_ENTRY"
)

// FallbackReason records why retrieval was rejected.
type FallbackReason string

const (
	FallbackNone                 FallbackReason = ""
	FallbackEmbeddingUnavailable FallbackReason = "embedding_unavailable"
	FallbackNoCandidates         FallbackReason = "no_candidates"
	FallbackBelowThreshold       FallbackReason = "below_threshold"
	FallbackUnitMismatch         FallbackReason = "unit_mismatch"
	FallbackRetrievalError       FallbackReason = "retrieval_error"
)

// ResultError is the error carried by a FAILED result. Message is kept verbatim.
type ResultError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ResultError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Alternate is a non-winning retrieval candidate kept for audit display.
type Alternate struct {
	FactorID    uint    `json:"factor_id"`
	Description string  `json:"description"`
	Source      string  `json:"source"`
	Similarity  float64 `json:"similarity"`
}

// CalculationResult is the normalized outcome for one activity entry.
// Exactly one holds: Method is FAILED and Error is set, or Method is not FAILED,
// TotalEmissions is defined and Error is nil. Results are never edited in place.
type CalculationResult struct {
	ID             string          `json:"id"`
	EntryID        string          `json:"entry_id"`
	TenantID       string          `json:"tenant_id"`
	TotalEmissions decimal.Decimal `json:"total_emissions"`
	EmissionsUnit  string          `json:"emissions_unit"`
	Method         Method          `json:"method"`
	Confidence     float64         `json:"confidence"`
	Source         string          `json:"source,omitempty"`
	FactorID       uint            `json:"factor_id,omitempty"`
	FactorValue    decimal.Decimal `json:"factor_value"`
	FactorUnit     string          `json:"factor_unit,omitempty"`
	Scope          *Scope          `json:"scope,omitempty"`
	Duration       time.Duration   `json:"duration_ns"`
	FallbackReason FallbackReason  `json:"fallback_reason,omitempty"`
	Error          *ResultError    `json:"error,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	RequiresReview bool            `json:"requires_review"`
	Alternates     []Alternate     `json:"alternates,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Succeeded reports whether the result carries an accepted total.
func (r *CalculationResult) Succeeded() bool {
	return r != nil && r.Method != MethodFailed && r.Error == nil
}

// Validate enforces the method/error invariant and value ranges.
func (r *CalculationResult) Validate() error {
	if r == nil {
		return fmt.Errorf("nil calculation result")
	}
	if !r.Method.Valid() {
		return fmt.Errorf("unknown method %q", r.Method)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	if r.Method == MethodFailed {
		if r.Error == nil {
			return fmt.Errorf("FAILED result for entry %q has no error", r.EntryID)
		}
		return nil
	}
	if r.Error != nil {
		return fmt.Errorf("%s result for entry %q carries error %q", r.Method, r.EntryID, r.Error.Message)
	}
	if r.TotalEmissions.IsNegative() {
		return fmt.Errorf("negative total %s for entry %q", r.TotalEmissions, r.EntryID)
	}
	if r.EmissionsUnit != EmissionsUnit {
		return fmt.Errorf("emissions unit %q, want %q", r.EmissionsUnit, EmissionsUnit)
	}
	return nil
}

// Failed builds a FAILED result for entry.
func Failed(entry *ActivityEntry, kind ErrorKind, message string, reason FallbackReason) *CalculationResult {
	r := &CalculationResult{
		EmissionsUnit:  EmissionsUnit,
		Method:         MethodFailed,
		FallbackReason: reason,
		Error:          &ResultError{Kind: kind, Message: message},
		RequiresReview: true,
	}
	if entry != nil {
		r.EntryID = entry.ID
		r.TenantID = entry.TenantID
		r.Scope = entry.Scope
	}
	return r
}
