package generative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/model"
)

const validPayload = `{
	"emission_factor": 2.68,
	"emission_factor_unit": "kg CO2e/L",
	"total_emissions": 268,
	"emissions_unit": "kg CO2e",
	"scope": 1,
	"source": "DEFRA 2024",
	"confidence": 0.8,
	"rationale": "Diesel combustion factor.",
	"warnings": []
}`

func TestParseEstimateValid(t *testing.T) {
	t.Parallel()

	est, err := ParseEstimate([]byte(validPayload))
	require.NoError(t, err)
	assert.InDelta(t, 2.68, est.EmissionFactor, 1e-9)
	assert.Equal(t, "kg CO2e/L", est.EmissionFactorUnit)
	assert.InDelta(t, 268.0, est.TotalEmissions, 1e-9)
	assert.Equal(t, model.Scope1, est.Scope)
	assert.Equal(t, "DEFRA 2024", est.Source)
	assert.Empty(t, est.Warnings)
	assert.Equal(t, "Diesel combustion factor.", est.Rationale)
}

func TestParseEstimateRationaleOptional(t *testing.T) {
	t.Parallel()

	est, err := ParseEstimate([]byte(`{"emission_factor":0.2,"emission_factor_unit":"kg CO2e/kWh",
		"total_emissions":10,"emissions_unit":"kg CO2e","scope":2,"source":"IEA","confidence":0.6,
		"warnings":["grid mix assumed"],"rationale":null}`))
	require.NoError(t, err)
	assert.Empty(t, est.Rationale)
	assert.Equal(t, []string{"grid mix assumed"}, est.Warnings)
}

func TestParseEstimateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"not json", `The answer is 268 kg.`, "not a JSON object"},
		{"fenced json", "```json\n" + validPayload + "\n```", "not a JSON object"},
		{"missing total", `{"emission_factor":2.68,"emission_factor_unit":"kg CO2e/L","emissions_unit":"kg CO2e",
			"scope":1,"source":"DEFRA","confidence":0.8,"warnings":[]}`, "total_emissions must be a number"},
		{"string number", `{"emission_factor":"2.68","emission_factor_unit":"kg CO2e/L","total_emissions":268,
			"emissions_unit":"kg CO2e","scope":1,"source":"DEFRA","confidence":0.8,"warnings":[]}`, "emission_factor must be a number"},
		{"confidence above one", `{"emission_factor":2.68,"emission_factor_unit":"kg CO2e/L","total_emissions":268,
			"emissions_unit":"kg CO2e","scope":1,"source":"DEFRA","confidence":1.5,"warnings":[]}`, "confidence out of range"},
		{"scope four", `{"emission_factor":2.68,"emission_factor_unit":"kg CO2e/L","total_emissions":268,
			"emissions_unit":"kg CO2e","scope":4,"source":"DEFRA","confidence":0.5,"warnings":[]}`, "scope out of range"},
		{"fractional scope", `{"emission_factor":2.68,"emission_factor_unit":"kg CO2e/L","total_emissions":268,
			"emissions_unit":"kg CO2e","scope":1.5,"source":"DEFRA","confidence":0.5,"warnings":[]}`, "scope must be an integer"},
		{"negative total", `{"emission_factor":2.68,"emission_factor_unit":"kg CO2e/L","total_emissions":-1,
			"emissions_unit":"kg CO2e","scope":1,"source":"DEFRA","confidence":0.5,"warnings":[]}`, "total_emissions out of range"},
		{"warnings not array", `{"emission_factor":2.68,"emission_factor_unit":"kg CO2e/L","total_emissions":268,
			"emissions_unit":"kg CO2e","scope":1,"source":"DEFRA","confidence":0.5,"warnings":"none"}`, "warnings must be an array"},
		{"empty unit", `{"emission_factor":2.68,"emission_factor_unit":" ","total_emissions":268,
			"emissions_unit":"kg CO2e","scope":1,"source":"DEFRA","confidence":0.5,"warnings":[]}`, "emission_factor_unit must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			est, err := ParseEstimate([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, est)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.True(t, errors.IsCategory(err, errors.CategoryMalformedResponse))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUserPromptIncludesHints(t *testing.T) {
	t.Parallel()

	prompt := userPrompt(&Request{
		Description: "Courier deliveries",
		Quantity:    42.5,
		Unit:        "km",
		ScopeHint:   model.Scope3.Ptr(),
		Category:    "logistics",
	})
	assert.Contains(t, prompt, "Activity: Courier deliveries")
	assert.Contains(t, prompt, "Quantity: 42.5")
	assert.Contains(t, prompt, "Scope hint: 3")
	assert.Contains(t, prompt, "Category: logistics")

	assert.NotContains(t, userPrompt(&Request{Description: "x", Quantity: 1, Unit: "kg"}), "Scope hint")
}
