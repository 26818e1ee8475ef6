// Package embedding converts free text into vectors for corpus similarity search.
//
// Failures are always ErrEmbeddingUnavailable, categorized so callers can tell
// rejected credentials (auth), exhausted rate or billing limits (quota) and
// connection or provider faults (transport) apart. Calls are never retried here.
package embedding

import (
	"context"

	"github.com/ecoledger/carbon-engine/internal/errors"
)

// ErrEmbeddingUnavailable wraps every embedding failure.
var ErrEmbeddingUnavailable = errors.NewStd("embedding unavailable")

// Generator produces an embedding for a text.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrorKind distinguishes embedding failure modes.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindAuth      ErrorKind = "auth"
	KindQuota     ErrorKind = "quota"
	KindTransport ErrorKind = "transport"
)

// Kind classifies an error returned by a Generator.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.IsCategory(err, errors.CategoryEmbeddingAuth):
		return KindAuth
	case errors.IsCategory(err, errors.CategoryEmbeddingQuota):
		return KindQuota
	case errors.IsCategory(err, errors.CategoryEmbeddingTransport), errors.Is(err, ErrEmbeddingUnavailable):
		return KindTransport
	}
	return KindNone
}

// Unavailable builds an ErrEmbeddingUnavailable of the given kind.
// Generator implementations outside this package use it to stay classifiable.
func Unavailable(kind ErrorKind, detail string) error {
	category := errors.CategoryEmbeddingTransport
	switch kind {
	case KindAuth:
		category = errors.CategoryEmbeddingAuth
	case KindQuota:
		category = errors.CategoryEmbeddingQuota
	}
	return errors.Newf("%w: %s", ErrEmbeddingUnavailable, detail).
		Component("embedding").
		Category(category).
		Context("kind", string(kind)).
		Build()
}
