package model

import "strconv"

// EmissionFactor is a read-only reference record from the corpus.
// Value is mass of CO2e per unit of activity, expressed in Unit ("kg CO2e/L").
type EmissionFactor struct {
	ID          uint      `json:"id" yaml:"-" toml:"-"`
	Description string    `json:"description" yaml:"description" toml:"description"`
	Source      string    `json:"source" yaml:"source" toml:"source"`
	Value       float64   `json:"value" yaml:"value" toml:"value"`
	Unit        string    `json:"unit" yaml:"unit" toml:"unit"`
	Region      string    `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty"`
	Year        int       `json:"year,omitempty" yaml:"year,omitempty" toml:"year,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	Embedding   []float32 `json:"-" yaml:"embedding,omitempty" toml:"embedding,omitempty"`
}

// Attribution renders the source with region and year for result records.
func (f *EmissionFactor) Attribution() string {
	switch {
	case f.Region != "" && f.Year > 0:
		return f.Source + " (" + f.Region + ", " + strconv.Itoa(f.Year) + ")"
	case f.Region != "":
		return f.Source + " (" + f.Region + ")"
	case f.Year > 0:
		return f.Source + " (" + strconv.Itoa(f.Year) + ")"
	}
	return f.Source
}
