package model

import "github.com/shopspring/decimal"

// EntryError pairs a failed entry with its error.
type EntryError struct {
	EntryID string    `json:"entry_id"`
	Kind    ErrorKind `json:"kind"`
	Error   string    `json:"error"`
}

// BatchSummary aggregates one batch invocation. It is not persisted.
type BatchSummary struct {
	Total             int             `json:"total"`
	Succeeded         int             `json:"succeeded"`
	Failed            int             `json:"failed"`
	AlreadyCalculated int             `json:"already_calculated"`
	ByMethod          map[Method]int  `json:"by_method"`
	TotalEmissions    decimal.Decimal `json:"total_emissions"`
	Errors            []EntryError    `json:"errors"`
}

// NewBatchSummary returns an empty summary for total entries.
func NewBatchSummary(total int) *BatchSummary {
	return &BatchSummary{
		Total:    total,
		ByMethod: make(map[Method]int, 3),
		Errors:   []EntryError{},
	}
}

// Record counts one terminal result.
func (s *BatchSummary) Record(r *CalculationResult) {
	if r.Succeeded() {
		s.Succeeded++
		s.ByMethod[r.Method]++
		s.TotalEmissions = s.TotalEmissions.Add(r.TotalEmissions)
		return
	}
	s.Failed++
	s.ByMethod[MethodFailed]++
	ee := EntryError{EntryID: r.EntryID}
	if r.Error != nil {
		ee.Kind = r.Error.Kind
		ee.Error = r.Error.Message
	}
	s.Errors = append(s.Errors, ee)
}

// RecordAlreadyCalculated counts an entry skipped because a result exists.
func (s *BatchSummary) RecordAlreadyCalculated() {
	s.AlreadyCalculated++
}

// Merge adds the counts of other into s.
func (s *BatchSummary) Merge(other *BatchSummary) {
	if other == nil {
		return
	}
	s.Total += other.Total
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.AlreadyCalculated += other.AlreadyCalculated
	for m, n := range other.ByMethod {
		s.ByMethod[m] += n
	}
	s.TotalEmissions = s.TotalEmissions.Add(other.TotalEmissions)
	s.Errors = append(s.Errors, other.Errors...)
}

// Consistent reports whether succeeded + failed == total - already calculated.
func (s *BatchSummary) Consistent() bool {
	return s.Succeeded+s.Failed == s.Total-s.AlreadyCalculated
}
