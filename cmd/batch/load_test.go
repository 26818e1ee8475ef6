package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEntriesWrappedYAML(t *testing.T) {
	path := writeFile(t, "entries.yaml", `
tenant_id: acme
entries:
  - id: inv-1
    description: Diesel for delivery vans
    quantity: 120
    unit: L
    scope: 1
  - id: inv-2
    tenant_id: other
    description: Office electricity
    quantity: 900
    unit: kWh
`)

	entries, err := loadEntries(path, "fallback")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "acme", entries[0].TenantID)
	assert.Equal(t, "other", entries[1].TenantID)
	require.NotNil(t, entries[0].Scope)
	assert.EqualValues(t, 1, *entries[0].Scope)
}

func TestLoadEntriesBareJSONList(t *testing.T) {
	path := writeFile(t, "entries.json", `[
  {"id": "a", "description": "Taxi ride", "quantity": 12, "unit": "km"}
]`)

	entries, err := loadEntries(path, "fallback")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fallback", entries[0].TenantID)
	assert.Equal(t, "km", entries[0].Unit)
}

func TestLoadEntriesErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported extension", "entries.csv", "id,description"},
		{"malformed json", "entries.json", `{"entries": [`},
		{"scalar yaml", "entries.yaml", "just a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadEntries(writeFile(t, tt.file, tt.content), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadEntriesMissingFile(t *testing.T) {
	_, err := loadEntries(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}
