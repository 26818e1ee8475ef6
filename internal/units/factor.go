package units

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ecoledger/carbon-engine/internal/errors"
)

// FactorUnit is a parsed "<mass> CO2e/<activity unit>".
type FactorUnit struct {
	Mass     Unit
	Activity Unit
}

// String renders the canonical form, for example "kg CO2e/L".
func (f FactorUnit) String() string {
	return f.Mass.Symbol + " CO2e/" + f.Activity.Symbol
}

// ParseFactorUnit accepts forms such as "kg CO2e/L", "kgCO2e / kWh",
// "g CO2e per km" and "t CO2e/tonne".
func ParseFactorUnit(s string) (FactorUnit, error) {
	folded := Fold(s)

	marker := "co2e"
	idx := strings.Index(folded, marker)
	if idx < 0 {
		marker = "co2"
		idx = strings.Index(folded, marker)
	}
	if idx < 0 {
		return FactorUnit{}, malformedFactorUnit(s, "missing CO2e marker")
	}

	massPart := strings.TrimSpace(folded[:idx])
	rest := strings.TrimSpace(folded[idx+len(marker):])

	var activityPart string
	switch {
	case strings.HasPrefix(rest, "/"):
		activityPart = strings.TrimSpace(rest[1:])
	case strings.HasPrefix(rest, "per "):
		activityPart = strings.TrimSpace(rest[len("per "):])
	default:
		return FactorUnit{}, malformedFactorUnit(s, "missing activity unit")
	}

	mass, ok := aliases[massPart]
	if !ok || mass.Dimension != DimensionMass {
		return FactorUnit{}, malformedFactorUnit(s, "unknown mass unit")
	}
	activity, ok := aliases[activityPart]
	if !ok {
		return FactorUnit{}, malformedFactorUnit(s, "unknown activity unit")
	}

	return FactorUnit{Mass: mass, Activity: activity}, nil
}

func malformedFactorUnit(unit, reason string) error {
	return errors.Newf("%w %q: %s", ErrMalformedFactorUnit, unit, reason).
		Component("units").
		Category(errors.CategoryUnitConversion).
		Context("factor_unit", unit).
		Build()
}

// Total computes quantity × factor in kg CO2e. The entry quantity is first
// converted to the factor's activity unit; differing dimensions are an error.
func Total(quantity float64, entryUnit string, factorValue float64, factorUnit string) (decimal.Decimal, error) {
	fu, err := ParseFactorUnit(factorUnit)
	if err != nil {
		return decimal.Zero, err
	}
	eu, err := Lookup(entryUnit)
	if err != nil {
		return decimal.Zero, err
	}

	qd, err := finite("quantity", quantity)
	if err != nil {
		return decimal.Zero, err
	}
	fd, err := finite("factor value", factorValue)
	if err != nil {
		return decimal.Zero, err
	}

	q, err := convert(qd, eu, fu.Activity)
	if err != nil {
		return decimal.Zero, err
	}

	total := q.Mul(fd).Mul(fu.Mass.toBase)
	return total.Round(resultPrecision), nil
}

// MassToKg converts an emissions amount reported in mass (for example "t CO2e")
// to kg CO2e.
func MassToKg(amount float64, unit string) (decimal.Decimal, error) {
	folded := Fold(unit)
	folded = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(folded, "co2e"), "co2"))
	mass, ok := aliases[folded]
	if !ok || mass.Dimension != DimensionMass {
		return decimal.Zero, errors.Newf("%w: %q is not a CO2e mass unit", ErrUnknownUnit, unit).
			Component("units").
			Category(errors.CategoryUnitConversion).
			Build()
	}
	ad, err := finite("emissions amount", amount)
	if err != nil {
		return decimal.Zero, err
	}
	return ad.Mul(mass.toBase).Round(resultPrecision), nil
}

// finite converts v, rejecting NaN and ±Inf which decimal cannot represent.
func finite(name string, v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, errors.Newf("%w: %s is %v", ErrNonFinite, name, v).
			Component("units").
			Category(errors.CategoryUnitConversion).
			Context("field", name).
			Build()
	}
	return decimal.NewFromFloat(v), nil
}
