// Package units canonicalises activity units, parses emission factor units
// ("kg CO2e/L") and computes totals in kg CO2e with exact decimal arithmetic.
package units

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/ecoledger/carbon-engine/internal/errors"
)

// Dimension groups units that convert into each other.
type Dimension string

const (
	DimensionVolume   Dimension = "volume"
	DimensionEnergy   Dimension = "energy"
	DimensionDistance Dimension = "distance"
	DimensionMass     Dimension = "mass"
	DimensionCount    Dimension = "count"
)

// divisionPrecision bounds non-terminating conversions such as L to gal.
const divisionPrecision = 12

// resultPrecision is the number of decimal places kept on totals.
const resultPrecision = 6

var (
	// ErrUnknownUnit is returned for units outside the alias tables.
	ErrUnknownUnit = errors.NewStd("unknown unit")
	// ErrIncompatibleUnits is returned when dimensions differ.
	ErrIncompatibleUnits = errors.NewStd("incompatible units")
	// ErrMalformedFactorUnit is returned when a factor unit is not "<mass> CO2e/<unit>".
	ErrMalformedFactorUnit = errors.NewStd("malformed factor unit")
	// ErrNonFinite is returned for NaN or infinite amounts.
	ErrNonFinite = errors.NewStd("non-finite amount")
)

// Unit is a canonical activity unit.
type Unit struct {
	Symbol    string
	Dimension Dimension
	// toBase converts one of this unit into the dimension's base unit
	// (L, kWh, km, kg, unit).
	toBase decimal.Decimal
}

func (u Unit) String() string { return u.Symbol }

func def(symbol string, dim Dimension, toBase string) Unit {
	return Unit{Symbol: symbol, Dimension: dim, toBase: decimal.RequireFromString(toBase)}
}

var (
	litre      = def("L", DimensionVolume, "1")
	millilitre = def("mL", DimensionVolume, "0.001")
	cubicMetre = def("m3", DimensionVolume, "1000")
	gallon     = def("gal", DimensionVolume, "3.785411784")
	wattHour   = def("Wh", DimensionEnergy, "0.001")
	kiloWatt   = def("kWh", DimensionEnergy, "1")
	megaWatt   = def("MWh", DimensionEnergy, "1000")
	gigaWatt   = def("GWh", DimensionEnergy, "1000000")
	metre      = def("m", DimensionDistance, "0.001")
	kilometre  = def("km", DimensionDistance, "1")
	mile       = def("mi", DimensionDistance, "1.609344")
	gram       = def("g", DimensionMass, "0.001")
	kilogram   = def("kg", DimensionMass, "1")
	tonne      = def("t", DimensionMass, "1000")
	pound      = def("lb", DimensionMass, "0.45359237")
	item       = def("unit", DimensionCount, "1")
)

// aliases maps case-folded spellings to canonical units.
var aliases = map[string]Unit{
	"l": litre, "litre": litre, "litres": litre, "liter": litre, "liters": litre, "ltr": litre,
	"ml": millilitre, "millilitre": millilitre, "millilitres": millilitre, "milliliter": millilitre, "milliliters": millilitre,
	"m3": cubicMetre, "m³": cubicMetre, "cubic metre": cubicMetre, "cubic metres": cubicMetre, "cubic meter": cubicMetre, "cubic meters": cubicMetre,
	"gal": gallon, "gallon": gallon, "gallons": gallon, "us gal": gallon,
	"wh": wattHour,
	"kwh": kiloWatt, "kilowatt hour": kiloWatt, "kilowatt hours": kiloWatt, "kilowatt-hour": kiloWatt, "kilowatt-hours": kiloWatt,
	"mwh": megaWatt, "megawatt hour": megaWatt, "megawatt hours": megaWatt,
	"gwh": gigaWatt,
	"m": metre, "metre": metre, "metres": metre, "meter": metre, "meters": metre,
	"km": kilometre, "kilometre": kilometre, "kilometres": kilometre, "kilometer": kilometre, "kilometers": kilometre,
	"mi": mile, "mile": mile, "miles": mile,
	"g": gram, "gram": gram, "grams": gram,
	"kg": kilogram, "kgs": kilogram, "kilogram": kilogram, "kilograms": kilogram,
	"t": tonne, "tonne": tonne, "tonnes": tonne, "metric ton": tonne, "metric tons": tonne,
	"lb": pound, "lbs": pound, "pound": pound, "pounds": pound,
	"unit": item, "units": item, "item": item, "items": item, "pcs": item, "piece": item, "pieces": item,
}

// Fold normalises text for alias lookup and cache keys: case-folded,
// trimmed, inner whitespace collapsed.
func Fold(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Lookup resolves a spelling to its canonical unit.
func Lookup(symbol string) (Unit, error) {
	if u, ok := aliases[Fold(symbol)]; ok {
		return u, nil
	}
	return Unit{}, errors.New(ErrUnknownUnit).
		Component("units").
		Category(errors.CategoryUnitConversion).
		Context("unit", symbol).
		Build()
}

// Canonical returns the canonical symbol for a spelling, or the input unchanged
// when it is unknown.
func Canonical(symbol string) string {
	if u, err := Lookup(symbol); err == nil {
		return u.Symbol
	}
	return strings.TrimSpace(symbol)
}

// Compatible reports whether two spellings share a dimension.
func Compatible(a, b string) bool {
	ua, errA := Lookup(a)
	ub, errB := Lookup(b)
	return errA == nil && errB == nil && ua.Dimension == ub.Dimension
}

// Convert expresses quantity given in from as a quantity in to.
func Convert(quantity decimal.Decimal, from, to string) (decimal.Decimal, error) {
	uf, err := Lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	ut, err := Lookup(to)
	if err != nil {
		return decimal.Zero, err
	}
	return convert(quantity, uf, ut)
}

func convert(quantity decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	if from.Dimension != to.Dimension {
		return decimal.Zero, errors.Newf("%w: cannot convert %s (%s) to %s (%s)",
			ErrIncompatibleUnits, from.Symbol, from.Dimension, to.Symbol, to.Dimension).
			Component("units").
			Category(errors.CategoryUnitConversion).
			Context("from", from.Symbol).
			Context("to", to.Symbol).
			Build()
	}
	if from.Symbol == to.Symbol {
		return quantity, nil
	}
	return quantity.Mul(from.toBase).DivRound(to.toBase, divisionPrecision), nil
}
