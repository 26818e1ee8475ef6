// Package model defines the domain types shared by the calculation engine,
// the batch orchestrator and the stores: activity entries, emission factors,
// calculation results and batch summaries.
package model

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecoledger/carbon-engine/internal/errors"
)

// Scope is the GHG Protocol emission scope.
type Scope int

const (
	Scope1 Scope = 1 // direct emissions
	Scope2 Scope = 2 // purchased energy
	Scope3 Scope = 3 // value chain
)

// Valid reports whether s is 1, 2 or 3.
func (s Scope) Valid() bool {
	return s >= Scope1 && s <= Scope3
}

// Ptr returns a pointer to a copy of s.
func (s Scope) Ptr() *Scope {
	return &s
}

// EntryStatus is the processing status of an activity entry.
type EntryStatus string

const (
	StatusUnprocessed EntryStatus = "unprocessed"
	StatusMatched     EntryStatus = "matched"
	StatusFailed      EntryStatus = "failed"
)

// ActivityEntry is one recorded physical activity awaiting an emissions estimate.
// Only the batch orchestrator changes Status, and only after a terminal outcome.
type ActivityEntry struct {
	ID           string      `json:"id" yaml:"id" validate:"required,max=64"`
	TenantID     string      `json:"tenant_id" yaml:"tenant_id" validate:"required,max=64"`
	Description  string      `json:"description" yaml:"description" validate:"required,max=2000"`
	Quantity     float64     `json:"quantity" yaml:"quantity" validate:"finite,gt=0"`
	Unit         string      `json:"unit" yaml:"unit" validate:"required,max=32"`
	Scope        *Scope      `json:"scope,omitempty" yaml:"scope,omitempty" validate:"omitempty,min=1,max=3"`
	Category     string      `json:"category,omitempty" yaml:"category,omitempty" validate:"max=64"`
	ActivityDate *time.Time  `json:"activity_date,omitempty" yaml:"activity_date,omitempty"`
	Status       EntryStatus `json:"status,omitempty" yaml:"status,omitempty" validate:"omitempty,oneof=unprocessed matched failed"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		// decimal arithmetic cannot represent NaN or ±Inf
		_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			v := fl.Field().Float()
			return !math.IsNaN(v) && !math.IsInf(v, 0)
		})
	})
	return validate
}

// Validate checks the entry's required fields and ranges.
// Violations are returned as one CategoryValidation error listing every field.
func (e *ActivityEntry) Validate() error {
	if e == nil {
		return errors.Newf("activity entry is nil").
			Component("model").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := structValidator().Struct(e); err != nil {
		return validationFailure(e.ID, err)
	}
	if e.ActivityDate != nil && e.ActivityDate.After(time.Now().Add(24*time.Hour)) {
		return errors.Newf("invalid activity entry %q: activity_date is in the future", e.ID).
			Component("model").
			Category(errors.CategoryValidation).
			Context("entry_id", e.ID).
			Build()
	}
	return nil
}

func validationFailure(entryID string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.New(err).Component("model").Category(errors.CategoryValidation).Build()
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}

	return errors.Newf("invalid activity entry %q: %s", entryID, strings.Join(problems, "; ")).
		Component("model").
		Category(errors.CategoryValidation).
		Context("entry_id", entryID).
		Context("field_count", len(problems)).
		Build()
}

// ScopeHint renders the optional scope for prompts and logs.
func (e *ActivityEntry) ScopeHint() string {
	if e.Scope == nil {
		return ""
	}
	return fmt.Sprintf("%d", *e.Scope)
}
