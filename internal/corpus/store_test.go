package corpus

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-engine/internal/datastore"
	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/embedding"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	db, err := datastore.OpenMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })
	return NewStore(repository.NewFactorRepository(db), log)
}

// keywordEmbedder maps known descriptions to fixed vectors.
type keywordEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (k *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	k.calls++
	if v, ok := k.vectors[text]; ok {
		return v, nil
	}
	return nil, embedding.Unavailable(embedding.KindTransport, "unknown text")
}

func factor(desc string, vec ...float32) *model.EmissionFactor {
	return &model.EmissionFactor{Description: desc, Source: "DEFRA", Value: 1, Unit: "kg CO2e/L", Embedding: vec}
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Add(ctx,
		factor("petrol", 0, 1, 0),
		factor("diesel", 1, 0, 0),
		factor("biodiesel", 1, 1, 0),
	))

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "diesel", matches[0].Factor.Description)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.Equal(t, "biodiesel", matches[1].Factor.Description)
	assert.InDelta(t, 0.7071, matches[1].Similarity, 1e-4)
	assert.Equal(t, "petrol", matches[2].Factor.Description)
	assert.InDelta(t, 0.0, matches[2].Similarity, 1e-9)
	assert.Equal(t, matches[0].Factor.ID, matches[0].FactorID)
}

func TestSearchTieKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Add(ctx, factor("first", 1, 1)))
	require.NoError(t, s.Add(ctx, factor("second", 1, 1)))
	require.NoError(t, s.Add(ctx, factor("third", 1, 1)))

	for range 5 {
		matches, err := s.Search(ctx, []float32{1, 1}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "first", matches[0].Factor.Description)
		assert.Equal(t, "second", matches[1].Factor.Description)
	}
}

func TestSearchClampsAndSkips(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Add(ctx,
		factor("opposite", -1, 0),
		factor("zero", 0, 0),
		factor("wrong dims", 1, 0, 0),
	))

	matches, err := s.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Similarity, 0.0)
		assert.LessOrEqual(t, m.Similarity, 1.0)
	}
}

func TestSearchEmptyCorpusAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	matches, err := s.Search(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = s.Search(context.Background(), nil, 3)
	require.Error(t, err)
}

func TestAddInvalidatesIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Add(ctx, factor("a", 0, 1)))
	matches, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", matches[0].Factor.Description)

	require.NoError(t, s.Add(ctx, factor("b", 1, 0)))
	matches, err = s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", matches[0].Factor.Description)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportYAMLEmbedsMissingVectors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	path := writeFile(t, "factors.yaml", `
factors:
  - description: Diesel (average biofuel blend)
    source: DEFRA
    value: 2.68
    unit: kgCO2e / litres
    region: UK
    year: 2024
  - description: Grid electricity
    source: DEFRA
    value: 0.207
    unit: kg CO2e/kWh
    embedding: [0, 1]
`)
	emb := &keywordEmbedder{vectors: map[string][]float32{"Diesel (average biofuel blend)": {1, 0}}}

	n, err := s.Import(ctx, path, emb)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, emb.calls)

	matches, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "kg CO2e/L", matches[0].Factor.Unit)
	assert.InDelta(t, 2.68, matches[0].Factor.Value, 1e-9)
	assert.Equal(t, 2024, matches[0].Factor.Year)
}

func TestImportTOML(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	path := writeFile(t, "factors.toml", `
[[factors]]
description = "Natural gas"
source = "EPA"
value = 2.02
unit = "kg CO2e/m3"
region = "US"
year = 2023
embedding = [0.5, 0.5]
`)
	n, err := s.Import(ctx, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := s.Search(ctx, []float32{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "EPA (US, 2023)", matches[0].Factor.Attribution())
}

func TestImportRejectsInvalidSeed(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	path := writeFile(t, "bad.yaml", `
factors:
  - description: ""
    source: x
    value: 1
    unit: kg CO2e/L
  - description: thing
    source: x
    value: 1
    unit: furlongs
`)
	_, err := s.Import(context.Background(), path, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "factor 0: description is required")
	assert.Contains(t, err.Error(), "factor 1:")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "nothing written on validation failure")
}

func TestImportRejectsNonFiniteValues(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	path := writeFile(t, "nonfinite.yaml", `
factors:
  - description: diesel
    source: DEFRA
    value: .nan
    unit: kg CO2e/L
    embedding: [1, 0]
  - description: petrol
    source: DEFRA
    value: .inf
    unit: kg CO2e/L
    embedding: [0, 1]
`)
	_, err := s.Import(context.Background(), path, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "factor 0: value NaN is not a finite number")
	assert.Contains(t, err.Error(), "factor 1: value +Inf is not a finite number")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddRejectsNonFiniteValue(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	poisoned := factor("diesel", 1, 0)
	poisoned.Value = math.NaN()
	err := s.Add(context.Background(), poisoned)
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportNeedsEmbedderForMissingVectors(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	path := writeFile(t, "factors.json", `{"factors":[{"description":"steam","source":"x","value":1,"unit":"kg CO2e/kWh"}]}`)
	_, err := s.Import(context.Background(), path, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestImportUnsupportedExtension(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	path := writeFile(t, "factors.csv", "description,value")
	_, err := s.Import(context.Background(), path, nil)
	require.Error(t, err)
}
