package memory

import (
	"context"
	"sort"
	"sync"

	"librarian/internal/domain"
	"librarian/internal/embedding"
	"librarian/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is an in-process vector store using brute-force Euclidean distance.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []domain.Entry
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = nil
	return nil
}

// Upsert replaces entries with an existing record ID and appends the rest.
func (s *Storage) Upsert(_ context.Context, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := vectorstore.ValidateEntries(entries, s.dimension); err != nil {
		return err
	}
	pos := make(map[string]int, len(s.entries))
	for i, e := range s.entries {
		pos[e.RecordID] = i
	}
	for _, e := range entries {
		e.Vector = append([]float64(nil), e.Vector...)
		if i, ok := pos[e.RecordID]; ok {
			s.entries[i] = e
			continue
		}
		pos[e.RecordID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Search returns up to topK entries ordered by ascending distance. Ties keep
// insertion order.
func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}
	if topK <= 0 {
		topK = 5
	}
	hits := make([]domain.Hit, len(s.entries))
	for i, e := range s.entries {
		d, err := embedding.Distance(e.Vector, vector)
		if err != nil {
			return nil, err
		}
		hits[i] = domain.Hit{RecordID: e.RecordID, Title: e.Title, Distance: d}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

func (s *Storage) Close() error { return nil }
