// Package recommend decides which indexed book, if any, answers a free-text
// request.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"librarian/internal/domain"
)

// DefaultThreshold is the largest Euclidean distance, over normalized
// embeddings, at which a nearest neighbour is still trusted.
const DefaultThreshold = 0.85

// NoMatchReason is the user-facing explanation for an unmatched query.
const NoMatchReason = "Sorry, I couldn't find a book matching your interests."

var (
	// ErrRetrievalUnavailable is returned when the search collaborator fails
	// or hands back data that cannot be trusted.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrEmptyQuery           = errors.New("empty query")
)

// TitleSource resolves record identifiers to books loaded at startup.
type TitleSource interface {
	Book(recordID string) (domain.Book, bool)
}

// Result is the outcome of a match: either a title or no match.
type Result struct {
	Title    string
	Matched  bool
	Distance float64
	Reason   string
}

// Matcher applies the distance threshold policy to the single nearest
// neighbour of a query. It holds no mutable state.
type Matcher struct {
	searcher  domain.Searcher
	titles    TitleSource
	threshold float64
}

// NewMatcher creates a matcher. A non-positive threshold selects
// DefaultThreshold.
func NewMatcher(searcher domain.Searcher, titles TitleSource, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{searcher: searcher, titles: titles, threshold: threshold}
}

// Threshold returns the distance cutoff in use.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Match returns the title of the nearest book when its distance is within the
// threshold (inclusive), and a no-match result otherwise.
func (m *Matcher) Match(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}
	candidates, err := m.searcher.Search(ctx, query, 1)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}
	if len(candidates) == 0 {
		return Result{Reason: NoMatchReason}, nil
	}
	top := candidates[0]
	if math.IsNaN(top.Distance) || top.Distance < 0 {
		return Result{}, fmt.Errorf("%w: invalid distance %v for %q", ErrRetrievalUnavailable, top.Distance, top.RecordID)
	}
	book, ok := m.titles.Book(top.RecordID)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown record %q", ErrRetrievalUnavailable, top.RecordID)
	}
	if top.Distance > m.threshold {
		return Result{Distance: top.Distance, Reason: NoMatchReason}, nil
	}
	return Result{Title: book.Title, Matched: true, Distance: top.Distance}, nil
}
