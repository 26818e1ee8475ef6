package generative

import (
	"strconv"
	"strings"
)

const systemPrompt = `You are a carbon accounting assistant. Estimate greenhouse gas emissions for the activity described by the user.

Answer with a single JSON object and nothing else. It must contain exactly these fields:
  "emission_factor":      number, kg CO2e (or g / t CO2e) per unit of activity, not negative
  "emission_factor_unit": string, in the form "<mass> CO2e/<activity unit>", e.g. "kg CO2e/L"
  "total_emissions":      number, quantity multiplied by emission_factor, not negative
  "emissions_unit":       string, e.g. "kg CO2e"
  "scope":                integer 1, 2 or 3 (GHG Protocol)
  "source":               string, the authority the factor comes from (e.g. "DEFRA 2024")
  "confidence":           number between 0 and 1
  "warnings":             array of strings, empty when there is nothing to flag
  "rationale":            string, optional, one or two sentences

Prefer the activity unit given by the user for emission_factor_unit. If a scope hint is given, use it unless it is clearly wrong, and add a warning when you override it.`

func userPrompt(req *Request) string {
	var b strings.Builder
	b.WriteString("Activity: ")
	b.WriteString(req.Description)
	b.WriteString("\nQuantity: ")
	b.WriteString(strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	b.WriteString("\nUnit: ")
	b.WriteString(req.Unit)
	if req.ScopeHint != nil {
		b.WriteString("\nScope hint: ")
		b.WriteString(strconv.Itoa(int(*req.ScopeHint)))
	}
	if req.Category != "" {
		b.WriteString("\nCategory: ")
		b.WriteString(req.Category)
	}
	return b.String()
}
