// Package generative asks a general-purpose reasoning model for an emissions
// estimate when corpus retrieval is rejected, and validates its answer against
// a fixed schema.
package generative

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/antonholmquist/jason"
	"github.com/go-playground/validator/v10"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/model"
)

var (
	// ErrMalformedResponse means the model output failed schema validation.
	ErrMalformedResponse = errors.NewStd("malformed generative response")
	// ErrTimeout means the model did not answer within the per-call timeout.
	ErrTimeout = errors.NewStd("generative call timed out")
	// ErrUnavailable wraps auth, quota and transport failures of the provider.
	ErrUnavailable = errors.NewStd("generative provider unavailable")
)

// Request is the activity handed to the model.
type Request struct {
	Description string
	Quantity    float64
	Unit        string
	ScopeHint   *model.Scope
	Category    string
}

// Estimate is a schema-valid model answer.
type Estimate struct {
	EmissionFactor     float64     `json:"emission_factor" validate:"gte=0"`
	EmissionFactorUnit string      `json:"emission_factor_unit" validate:"required"`
	TotalEmissions     float64     `json:"total_emissions" validate:"gte=0"`
	EmissionsUnit      string      `json:"emissions_unit" validate:"required"`
	Scope              model.Scope `json:"scope" validate:"min=1,max=3"`
	Source             string      `json:"source"`
	Confidence         float64     `json:"confidence" validate:"gte=0,lte=1"`
	Rationale          string      `json:"rationale,omitempty"`
	Warnings           []string    `json:"warnings"`
}

var (
	estimateValidator     *validator.Validate
	estimateValidatorOnce sync.Once
)

func rangeValidator() *validator.Validate {
	estimateValidatorOnce.Do(func() {
		estimateValidator = validator.New(validator.WithRequiredStructEnabled())
		estimateValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			return name
		})
	})
	return estimateValidator
}

// Calculator produces an estimate for one activity.
type Calculator interface {
	Estimate(ctx context.Context, req Request) (*Estimate, error)
}

// Schema field names.
const (
	fieldEmissionFactor     = "emission_factor"
	fieldEmissionFactorUnit = "emission_factor_unit"
	fieldTotalEmissions     = "total_emissions"
	fieldEmissionsUnit      = "emissions_unit"
	fieldScope              = "scope"
	fieldSource             = "source"
	fieldConfidence         = "confidence"
	fieldWarnings           = "warnings"
	fieldRationale          = "rationale"
)

// ParseEstimate validates a model payload. Every schema field is required and
// typed; rationale is optional. Nothing is coerced: a missing field, a wrong
// type, an out-of-range value or non-JSON text yields ErrMalformedResponse.
func ParseEstimate(payload []byte) (*Estimate, error) {
	obj, err := jason.NewObjectFromBytes(payload)
	if err != nil {
		return nil, malformed("payload is not a JSON object: %v", err)
	}

	var (
		est      Estimate
		problems []string
	)
	number := func(field string) float64 {
		v, err := obj.GetFloat64(field)
		if err != nil {
			problems = append(problems, field+" must be a number")
			return 0
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			problems = append(problems, field+" must be finite")
		}
		return v
	}
	text := func(field string, required bool) string {
		v, err := obj.GetString(field)
		if err != nil {
			problems = append(problems, field+" must be a string")
			return ""
		}
		if required && strings.TrimSpace(v) == "" {
			problems = append(problems, field+" must not be empty")
		}
		return v
	}

	est.EmissionFactor = number(fieldEmissionFactor)
	est.EmissionFactorUnit = text(fieldEmissionFactorUnit, true)
	est.TotalEmissions = number(fieldTotalEmissions)
	est.EmissionsUnit = text(fieldEmissionsUnit, true)
	est.Source = text(fieldSource, false)
	est.Confidence = number(fieldConfidence)

	scope := number(fieldScope)
	if scope != math.Trunc(scope) {
		problems = append(problems, "scope must be an integer")
	}
	est.Scope = model.Scope(int(scope))

	warnings, err := obj.GetStringArray(fieldWarnings)
	if err != nil {
		problems = append(problems, "warnings must be an array of strings")
	}
	est.Warnings = warnings

	if v, err := obj.GetValue(fieldRationale); err == nil {
		if v.Null() != nil {
			s, err := v.String()
			if err != nil {
				problems = append(problems, "rationale must be a string")
			}
			est.Rationale = s
		}
	}

	if len(problems) > 0 {
		return nil, malformed("%s", strings.Join(problems, "; "))
	}

	// ranges are checked only once every field has the right type
	if err := rangeValidator().Struct(&est); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("%s out of range (%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
			}
		} else {
			problems = append(problems, err.Error())
		}
		return nil, malformed("%s", strings.Join(problems, "; "))
	}
	return &est, nil
}

func malformed(format string, args ...any) error {
	return errors.Newf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...)).
		Component("generative").
		Category(errors.CategoryMalformedResponse).
		Build()
}
