package recommend_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"librarian/internal/catalog"
	"librarian/internal/domain"
	"librarian/internal/recommend"
)

type fakeSearcher struct {
	candidates []domain.Candidate
	err        error
	calls      int
	lastTopK   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, topK int) ([]domain.Candidate, error) {
	f.calls++
	f.lastTopK = topK
	return f.candidates, f.err
}

func newCatalog(t *testing.T, titles ...string) *catalog.Catalog {
	t.Helper()
	books := make([]domain.Book, len(titles))
	for i, title := range titles {
		books[i] = domain.Book{Title: title, Summary: title + " summary"}
	}
	c, err := catalog.New(books)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func TestMatch_Threshold(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		matched  bool
	}{
		{"close", 0.3, true},
		{"zero", 0, true},
		{"boundary", 0.85, true},
		{"just over", 0.8500001, false},
		{"far", 0.9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{candidates: []domain.Candidate{{RecordID: "book0", Distance: tt.distance}}}
			m := recommend.NewMatcher(s, newCatalog(t, "Book A"), recommend.DefaultThreshold)
			res, err := m.Match(context.Background(), "a story about rings")
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if res.Matched != tt.matched {
				t.Fatalf("Matched: got %v, want %v", res.Matched, tt.matched)
			}
			if tt.matched && res.Title != "Book A" {
				t.Errorf("Title: got %q, want %q", res.Title, "Book A")
			}
			if !tt.matched && (res.Title != "" || res.Reason != recommend.NoMatchReason) {
				t.Errorf("no-match result: got %+v", res)
			}
			if s.lastTopK != 1 {
				t.Errorf("topK: got %d, want 1", s.lastTopK)
			}
		})
	}
}

func TestMatch_TitleUnaltered(t *testing.T) {
	s := &fakeSearcher{candidates: []domain.Candidate{{RecordID: "book1", Distance: 0.2}}}
	m := recommend.NewMatcher(s, newCatalog(t, "Dune", "  The Name of the Wind"), 0)
	res, err := m.Match(context.Background(), "magic school")
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "The Name of the Wind" {
		t.Errorf("Title: got %q", res.Title)
	}
}

func TestMatch_EmptyCandidates(t *testing.T) {
	m := recommend.NewMatcher(&fakeSearcher{}, newCatalog(t), 0)
	res, err := m.Match(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched || res.Reason != recommend.NoMatchReason {
		t.Errorf("got %+v, want no match", res)
	}
}

func TestMatch_RetrievalUnavailable(t *testing.T) {
	tests := []struct {
		name string
		s    *fakeSearcher
	}{
		{"search error", &fakeSearcher{err: errors.New("connection refused")}},
		{"unknown record", &fakeSearcher{candidates: []domain.Candidate{{RecordID: "book7", Distance: 0.1}}}},
		{"negative distance", &fakeSearcher{candidates: []domain.Candidate{{RecordID: "book0", Distance: -0.1}}}},
		{"nan distance", &fakeSearcher{candidates: []domain.Candidate{{RecordID: "book0", Distance: math.NaN()}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := recommend.NewMatcher(tt.s, newCatalog(t, "Book A"), 0)
			_, err := m.Match(context.Background(), "query")
			if !errors.Is(err, recommend.ErrRetrievalUnavailable) {
				t.Fatalf("got %v, want ErrRetrievalUnavailable", err)
			}
		})
	}
}

func TestMatch_EmptyQuery(t *testing.T) {
	s := &fakeSearcher{}
	m := recommend.NewMatcher(s, newCatalog(t, "Book A"), 0)
	if _, err := m.Match(context.Background(), "   "); !errors.Is(err, recommend.ErrEmptyQuery) {
		t.Fatalf("got %v, want ErrEmptyQuery", err)
	}
	if s.calls != 0 {
		t.Errorf("searcher called %d times for empty query", s.calls)
	}
}

func TestMatch_Idempotent(t *testing.T) {
	s := &fakeSearcher{candidates: []domain.Candidate{{RecordID: "book0", Distance: 0.5}}}
	m := recommend.NewMatcher(s, newCatalog(t, "Book A"), 0)
	first, err := m.Match(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Match(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestNewMatcher_DefaultThreshold(t *testing.T) {
	m := recommend.NewMatcher(&fakeSearcher{}, newCatalog(t), -1)
	if m.Threshold() != recommend.DefaultThreshold {
		t.Errorf("Threshold: got %v, want %v", m.Threshold(), recommend.DefaultThreshold)
	}
}
