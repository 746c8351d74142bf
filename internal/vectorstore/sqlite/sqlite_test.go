package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"librarian/internal/domain"
	"librarian/internal/vectorstore"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStorage_UpsertSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	if err := s.Init(ctx, 2); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, []domain.Entry{
		{RecordID: "book0", Title: "East", Vector: []float64{1, 0}},
		{RecordID: "book1", Title: "North", Vector: []float64{0, 1}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	hits, err := s.Search(ctx, []float64{0.6, 0.8}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].RecordID != "book1" || hits[0].Title != "North" {
		t.Fatalf("hits: got %+v", hits)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestStorage_Persists(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStorage(t)
	_ = s.Init(ctx, 1)
	_ = s.Upsert(ctx, []domain.Entry{{RecordID: "book0", Title: "Dune", Vector: []float64{1}}})
	s.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	hits, err := reopened.Search(ctx, []float64{1}, 1)
	if err != nil || len(hits) != 1 || hits[0].Title != "Dune" {
		t.Fatalf("after reopen: got (%+v, %v)", hits, err)
	}
}

func TestStorage_UninitializedAndClear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	hits, err := s.Search(ctx, []float64{1, 2}, 1)
	if err != nil || len(hits) != 0 {
		t.Fatalf("uninitialized: got (%v, %v)", hits, err)
	}
	if err := s.Upsert(ctx, []domain.Entry{{RecordID: "a", Vector: []float64{1}}}); !errors.Is(err, vectorstore.ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
	_ = s.Init(ctx, 1)
	_ = s.Upsert(ctx, []domain.Entry{{RecordID: "a", Vector: []float64{1}}})
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if hits, _ := s.Search(ctx, []float64{1}, 1); len(hits) != 0 {
		t.Errorf("after Clear: got %+v", hits)
	}
}

func TestStorage_InitNewDimensionDropsVectors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	_ = s.Init(ctx, 1)
	_ = s.Upsert(ctx, []domain.Entry{{RecordID: "a", Vector: []float64{1}}})
	if err := s.Init(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestStorage_Lock(t *testing.T) {
	s, path := newTestStorage(t)
	unlock, err := s.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	other, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := other.Lock(ctx); err == nil {
		t.Error("second lock should fail while the first is held")
	}
	unlock()
	if release, err := other.Lock(context.Background()); err != nil {
		t.Errorf("Lock after unlock: %v", err)
	} else {
		release()
	}
}

func TestVectorEncoding(t *testing.T) {
	v := []float64{0.5, -1, 0}
	got, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatal(err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("got %v, want %v", got, v)
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestStorage_ReplaceAndFingerprint(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	if fp, err := s.Fingerprint(ctx); err != nil || fp != "" {
		t.Fatalf("fresh Fingerprint: got %q, %v", fp, err)
	}
	first := []domain.Entry{
		{RecordID: "book0", Title: "Dune", Vector: []float64{1, 0}},
		{RecordID: "book1", Title: "The Hobbit", Vector: []float64{0, 1}},
	}
	if err := s.Replace(ctx, 2, first, "v1"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if fp, _ := s.Fingerprint(ctx); fp != "v1" {
		t.Errorf("Fingerprint: got %q, want v1", fp)
	}

	// A dimension mismatch rejects the whole batch and keeps the old index.
	bad := []domain.Entry{{RecordID: "book0", Title: "1984", Vector: []float64{1, 0, 0}}}
	if err := s.Replace(ctx, 2, bad, "v2"); err == nil {
		t.Fatal("Replace with mismatched vector: expected error")
	}
	hits, err := s.Search(ctx, []float64{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Title != "Dune" {
		t.Errorf("after failed Replace: got %+v", hits)
	}
	if fp, _ := s.Fingerprint(ctx); fp != "v1" {
		t.Errorf("Fingerprint after failed Replace: got %q", fp)
	}

	// A smaller replacement drops rows that are no longer present.
	if err := s.Replace(ctx, 3, bad, "v2"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}

	if err := s.Upsert(ctx, []domain.Entry{{RecordID: "book1", Title: "Emma", Vector: []float64{0, 1, 0}}}); err != nil {
		t.Fatal(err)
	}
	if fp, _ := s.Fingerprint(ctx); fp != "" {
		t.Errorf("Fingerprint after Upsert: got %q, want empty", fp)
	}
}
