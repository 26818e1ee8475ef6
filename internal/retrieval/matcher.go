// Package retrieval matches activity descriptions against the reference
// corpus by embedding similarity.
package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/ecoledger/carbon-engine/internal/corpus"
	"github.com/ecoledger/carbon-engine/internal/embedding"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/model"
)

// DefaultTopK is the number of candidates fetched per match.
const DefaultTopK = 5

// Searcher is the nearest-neighbour query of the corpus.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]corpus.Match, error)
}

// Candidate is a ranked corpus factor.
type Candidate struct {
	Factor     model.EmissionFactor
	Similarity float64
}

// Matcher embeds a description and returns ranked candidates. It has no side effects.
type Matcher struct {
	embedder embedding.Generator
	corpus   Searcher
	topK     int
	log      logger.Logger
}

// NewMatcher creates a Matcher. topK <= 0 uses DefaultTopK.
func NewMatcher(embedder embedding.Generator, searcher Searcher, topK int, log logger.Logger) *Matcher {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Matcher{
		embedder: embedder,
		corpus:   searcher,
		topK:     topK,
		log:      logger.Or(log, "retrieval"),
	}
}

// Match returns candidates ordered by descending similarity; equal scores keep
// corpus insertion order. The list is empty only when the corpus is.
// Embedding failures are returned as-is so their kind stays visible.
func (m *Matcher) Match(ctx context.Context, description string) ([]Candidate, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.Newf("description is empty").
			Component("retrieval").
			Category(errors.CategoryValidation).
			Build()
	}

	start := time.Now()
	vec, err := m.embedder.Embed(ctx, description)
	if err != nil {
		return nil, err
	}

	matches, err := m.corpus.Search(ctx, vec, m.topK)
	if err != nil {
		return nil, errors.New(err).
			Component("retrieval").
			Category(errors.CategoryPersistence).
			Context("operation", "corpus_search").
			Build()
	}

	candidates := make([]Candidate, len(matches))
	for i := range matches {
		candidates[i] = Candidate{Factor: matches[i].Factor, Similarity: matches[i].Similarity}
	}

	if len(candidates) > 0 {
		m.log.Debug("retrieval candidates ranked",
			logger.Int("count", len(candidates)),
			logger.Float64("top_similarity", candidates[0].Similarity),
			logger.Duration("elapsed", time.Since(start)))
	}
	return candidates, nil
}
