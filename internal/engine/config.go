package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecoledger/carbon-engine/internal/errors"
)

// Defaults for Config.
const (
	DefaultSimilarityThreshold   = 0.75
	DefaultRetrievalConcurrency  = 8
	DefaultGenerativeConcurrency = 3
	DefaultGenerativeTimeout     = 60 * time.Second
	DefaultTopK                  = 5
	DefaultReviewConfidence      = 0.6
)

// Config holds the decision policy and the per-pass concurrency limits.
type Config struct {
	// SimilarityThreshold is inclusive: a top similarity equal to it is accepted.
	SimilarityThreshold   float64
	RetrievalConcurrency  int
	GenerativeConcurrency int
	GenerativeTimeout     time.Duration
	TopK                  int
	// ReviewConfidence flags accepted results below it for manual review.
	ReviewConfidence float64
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:   DefaultSimilarityThreshold,
		RetrievalConcurrency:  DefaultRetrievalConcurrency,
		GenerativeConcurrency: DefaultGenerativeConcurrency,
		GenerativeTimeout:     DefaultGenerativeTimeout,
		TopK:                  DefaultTopK,
		ReviewConfidence:      DefaultReviewConfidence,
	}
}

// Validate checks ranges and returns every problem at once.
func (c *Config) Validate() error {
	var problems []string
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		problems = append(problems, fmt.Sprintf("similarity_threshold %v outside [0,1]", c.SimilarityThreshold))
	}
	if c.RetrievalConcurrency < 1 {
		problems = append(problems, "retrieval_concurrency must be at least 1")
	}
	if c.GenerativeConcurrency < 1 {
		problems = append(problems, "generative_concurrency must be at least 1")
	}
	if c.GenerativeTimeout <= 0 {
		problems = append(problems, "generative_timeout must be positive")
	}
	if c.TopK < 1 {
		problems = append(problems, "top_k must be at least 1")
	}
	if c.ReviewConfidence < 0 || c.ReviewConfidence > 1 {
		problems = append(problems, fmt.Sprintf("review_confidence %v outside [0,1]", c.ReviewConfidence))
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid engine configuration: %s", strings.Join(problems, "; ")).
		Component("engine").
		Category(errors.CategoryConfiguration).
		Build()
}
