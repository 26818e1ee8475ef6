// Package corpus is the reference corpus of emission factors with an
// in-memory cosine similarity index over their embeddings.
package corpus

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/ecoledger/carbon-engine/internal/datastore/repository"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// Match is one search hit. Similarity is in [0,1].
type Match struct {
	FactorID   uint
	Similarity float64
	Factor     model.EmissionFactor
}

type indexedFactor struct {
	factor model.EmissionFactor
	norm   float64
}

// Store serves similarity search over the factors held by a FactorRepository.
// The index is loaded on first search and rebuilt after Add.
type Store struct {
	repo repository.FactorRepository
	log  logger.Logger

	mu     sync.RWMutex
	index  []indexedFactor // ID order, which is insertion order
	loaded bool
}

// NewStore creates a corpus store.
func NewStore(repo repository.FactorRepository, log logger.Logger) *Store {
	return &Store{repo: repo, log: logger.Or(log, "corpus")}
}

// Search returns up to topK factors ordered by descending similarity.
// Equal similarities keep corpus insertion order. Factors whose embedding
// dimension differs from the query are skipped.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.Newf("empty query vector").
			Component("corpus").
			Category(errors.CategoryValidation).
			Build()
	}
	if topK <= 0 {
		topK = 1
	}

	index, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	qnorm := norm(vector)
	matches := make([]Match, 0, len(index))
	skipped := 0
	for i := range index {
		f := &index[i]
		if len(f.factor.Embedding) != len(vector) {
			skipped++
			continue
		}
		matches = append(matches, Match{
			FactorID:   f.factor.ID,
			Similarity: cosine(vector, f.factor.Embedding, qnorm, f.norm),
			Factor:     f.factor,
		})
	}
	if skipped > 0 {
		s.log.Debug("factors skipped for dimension mismatch",
			logger.Int("skipped", skipped),
			logger.Int("query_dimensions", len(vector)))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Add appends factors to the corpus. IDs are assigned in argument order.
func (s *Store) Add(ctx context.Context, factors ...*model.EmissionFactor) error {
	if len(factors) == 0 {
		return nil
	}
	if err := s.repo.Create(ctx, factors); err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded = false
	s.index = nil
	s.mu.Unlock()

	s.log.Info("corpus extended", logger.Int("added", len(factors)))
	return nil
}

// Count returns the number of factors in the corpus.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *Store) snapshot(ctx context.Context) ([]indexedFactor, error) {
	s.mu.RLock()
	if s.loaded {
		index := s.index
		s.mu.RUnlock()
		return index, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.index, nil
	}

	factors, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	index := make([]indexedFactor, 0, len(factors))
	for i := range factors {
		if len(factors[i].Embedding) == 0 {
			continue
		}
		index = append(index, indexedFactor{factor: factors[i], norm: norm(factors[i].Embedding)})
	}
	s.index = index
	s.loaded = true

	s.log.Debug("corpus index loaded", logger.Int("factors", len(index)))
	return index, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity clamped to [0,1]; opposed vectors score 0.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / (na * nb)
	switch {
	case math.IsNaN(sim), sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}
