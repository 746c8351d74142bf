package vectorstore

import (
	"errors"
	"fmt"

	"librarian/internal/domain"
)

// Storage persists book vectors and supports nearest-neighbour search by
// Euclidean distance.
type Storage = domain.VectorStore

var (
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrNotInitialized    = errors.New("vector store not initialized")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// ValidateEntries checks that every entry carries an ID and a vector of the
// given dimension.
func ValidateEntries(entries []domain.Entry, dimension int) error {
	if dimension <= 0 {
		return ErrNotInitialized
	}
	for _, e := range entries {
		if e.RecordID == "" {
			return errors.New("entry without record id")
		}
		if len(e.Vector) != dimension {
			return fmt.Errorf("%w: %s has %d, want %d", ErrDimensionMismatch, e.RecordID, len(e.Vector), dimension)
		}
	}
	return nil
}
