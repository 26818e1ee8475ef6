package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ecoledger/carbon-engine/internal/embedding"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
	"github.com/ecoledger/carbon-engine/internal/units"
)

// SeedFile is the on-disk format for corpus imports (YAML, TOML or JSON):
//
//	factors:
//	  - description: Diesel (average biofuel blend)
//	    source: DEFRA
//	    value: 2.68
//	    unit: kg CO2e/L
//	    region: UK
//	    year: 2024
type SeedFile struct {
	Factors []model.EmissionFactor `json:"factors" yaml:"factors" toml:"factors"`
}

// ParseSeed decodes a seed file; format is chosen by extension.
func ParseSeed(path string, data []byte) (*SeedFile, error) {
	var (
		seed SeedFile
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &seed)
	case ".toml":
		err = toml.Unmarshal(data, &seed)
	case ".json":
		err = json.Unmarshal(data, &seed)
	default:
		return nil, errors.Newf("unsupported seed file extension %q", filepath.Ext(path)).
			Component("corpus").
			Category(errors.CategoryValidation).
			Build()
	}
	if err != nil {
		return nil, errors.Newf("failed to parse seed file %s: %w", filepath.Base(path), err).
			Component("corpus").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return &seed, nil
}

// Validate checks every factor and reports all problems at once.
func (s *SeedFile) Validate() error {
	var problems []string
	for i := range s.Factors {
		f := &s.Factors[i]
		switch {
		case strings.TrimSpace(f.Description) == "":
			problems = append(problems, fmt.Sprintf("factor %d: description is required", i))
		case strings.TrimSpace(f.Source) == "":
			problems = append(problems, fmt.Sprintf("factor %d: source is required", i))
		case math.IsNaN(f.Value) || math.IsInf(f.Value, 0):
			problems = append(problems, fmt.Sprintf("factor %d: value %v is not a finite number", i, f.Value))
		case f.Value < 0:
			problems = append(problems, fmt.Sprintf("factor %d: negative value %v", i, f.Value))
		}
		if _, err := units.ParseFactorUnit(f.Unit); err != nil {
			problems = append(problems, fmt.Sprintf("factor %d: %v", i, err))
		}
	}
	if len(problems) > 0 {
		return errors.Newf("invalid seed file: %s", strings.Join(problems, "; ")).
			Component("corpus").
			Category(errors.CategoryValidation).
			Context("problem_count", len(problems)).
			Build()
	}
	return nil
}

// Import loads a seed file, embeds descriptions that carry no vector and
// appends the factors in file order. It returns the number of factors added.
func (s *Store) Import(ctx context.Context, path string, embedder embedding.Generator) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Newf("failed to read seed file: %w", err).
			Component("corpus").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	seed, err := ParseSeed(path, data)
	if err != nil {
		return 0, err
	}
	if err := seed.Validate(); err != nil {
		return 0, err
	}

	factors := make([]*model.EmissionFactor, 0, len(seed.Factors))
	embedded := 0
	for i := range seed.Factors {
		f := &seed.Factors[i]
		f.Unit = canonicalFactorUnit(f.Unit)
		if len(f.Embedding) == 0 {
			if embedder == nil {
				return 0, errors.Newf("factor %q has no embedding and no embedder is configured", f.Description).
					Component("corpus").
					Category(errors.CategoryConfiguration).
					Build()
			}
			vec, err := embedder.Embed(ctx, f.Description)
			if err != nil {
				return 0, err
			}
			f.Embedding = vec
			embedded++
		}
		factors = append(factors, f)
	}

	if err := s.Add(ctx, factors...); err != nil {
		return 0, err
	}

	s.log.Info("corpus imported",
		logger.String("file", filepath.Base(path)),
		logger.Int("factors", len(factors)),
		logger.Int("embedded", embedded))
	return len(factors), nil
}

func canonicalFactorUnit(unit string) string {
	fu, err := units.ParseFactorUnit(unit)
	if err != nil {
		return unit
	}
	return fu.String()
}
