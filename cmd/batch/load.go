package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// entriesFile is the wrapped input format. A bare list of entries is accepted too.
//
//	tenant_id: acme
//	entries:
//	  - id: inv-001
//	    description: Diesel for delivery vans
//	    quantity: 120
//	    unit: L
type entriesFile struct {
	TenantID string                `json:"tenant_id" yaml:"tenant_id"`
	Entries  []model.ActivityEntry `json:"entries" yaml:"entries"`
}

// loadEntries reads a YAML or JSON entries file. Entries without a tenant get
// the file's tenant, then fallbackTenant.
func loadEntries(path, fallbackTenant string) ([]model.ActivityEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	file, err := parseEntries(path, data)
	if err != nil {
		return nil, err
	}

	tenant := file.TenantID
	if tenant == "" {
		tenant = fallbackTenant
	}
	for i := range file.Entries {
		if file.Entries[i].TenantID == "" {
			file.Entries[i].TenantID = tenant
		}
	}
	return file.Entries, nil
}

func parseEntries(path string, data []byte) (*entriesFile, error) {
	var unmarshal func([]byte, any) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	case ".json":
		unmarshal = json.Unmarshal
	default:
		return nil, errors.Newf("unsupported entries file extension %q", filepath.Ext(path)).
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}

	var file entriesFile
	wrappedErr := unmarshal(data, &file)
	if wrappedErr == nil && file.Entries != nil {
		return &file, nil
	}

	var list []model.ActivityEntry
	if err := unmarshal(data, &list); err != nil {
		if wrappedErr == nil {
			wrappedErr = err
		}
		return nil, errors.Newf("failed to parse entries file %s: %w", filepath.Base(path), wrappedErr).
			Component("cli").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return &entriesFile{Entries: list}, nil
}
