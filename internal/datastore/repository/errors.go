// Package repository provides the stores used by the engine: calculations,
// activity entries and the emission factor corpus.
package repository

import (
	"github.com/ecoledger/carbon-engine/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrDuplicateKey indicates a successful calculation already exists for the entry.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrActivityNotFound indicates the requested activity entry does not exist.
	ErrActivityNotFound = errors.NewStd("activity entry not found")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)

// persistenceError wraps a database failure for callers that map it to PERSISTENCE_ERROR.
func persistenceError(op string, err error) error {
	return errors.Newf("%s: %w", op, err).
		Component("datastore").
		Category(errors.CategoryPersistence).
		Context("operation", op).
		Build()
}

func invalidInput(msg string) error {
	return errors.Newf("%w: %s", ErrInvalidInput, msg).
		Component("datastore").
		Category(errors.CategoryValidation).
		Build()
}
