package engine

import (
	"fmt"

	"github.com/ecoledger/carbon-engine/internal/model"
)

// Rejection is why retrieval did not produce a result. It only ever triggers
// the generative fallback and is never returned to callers as an error.
type Rejection struct {
	Reason model.FallbackReason
	// Err is the underlying failure for embedding_unavailable and retrieval_error.
	Err error
	// TopSimilarity is the best score seen, zero when there were no candidates.
	TopSimilarity float64
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("retrieval rejected (%s): %v", r.Reason, r.Err)
	}
	if r.Reason == model.FallbackBelowThreshold {
		return fmt.Sprintf("retrieval rejected (%s): top similarity %.4f", r.Reason, r.TopSimilarity)
	}
	return fmt.Sprintf("retrieval rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Outcome is the result of the retrieval pass: exactly one of Result and
// Rejection is set.
type Outcome struct {
	Result    *model.CalculationResult
	Rejection *Rejection
}

// Accepted reports whether retrieval produced a result.
func (o Outcome) Accepted() bool {
	return o.Result != nil
}
