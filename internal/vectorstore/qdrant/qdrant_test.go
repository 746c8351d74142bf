package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"librarian/internal/domain"
)

func TestStorage_Lifecycle(t *testing.T) {
	var created map[string]any
	var upserted struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "k" {
			t.Errorf("api-key header: got %q", r.Header.Get("api-key"))
		}
		switch r.Method + " " + r.URL.Path {
		case "PUT /collections/books":
			_ = json.NewDecoder(r.Body).Decode(&created)
			_, _ = w.Write([]byte(`{"result":true}`))
		case "PUT /collections/books/points":
			_ = json.NewDecoder(r.Body).Decode(&upserted)
			_, _ = w.Write([]byte(`{"result":{}}`))
		case "POST /collections/books/points/search":
			_, _ = w.Write([]byte(`{"result":[{"score":0.42,"payload":{"record_id":"book0","title":"Dune"}}]}`))
		case "POST /collections/books/points/count":
			_, _ = w.Write([]byte(`{"result":{"count":1}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewStorage(Config{URL: srv.URL, APIKey: "k"})
	if err := s.Init(ctx, 2); err != nil {
		t.Fatalf("Init: %v", err)
	}
	vectors, _ := created["vectors"].(map[string]any)
	if vectors["distance"] != "Euclid" {
		t.Errorf("distance: got %v", vectors["distance"])
	}
	if err := s.Upsert(ctx, []domain.Entry{{RecordID: "book0", Title: "Dune", Vector: []float64{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(upserted.Points) != 1 {
		t.Fatalf("points: got %d", len(upserted.Points))
	}
	if _, err := uuid.Parse(upserted.Points[0].ID); err != nil {
		t.Errorf("point id %q is not a UUID", upserted.Points[0].ID)
	}
	if upserted.Points[0].ID != s.PointID("book0") {
		t.Error("point id is not deterministic")
	}
	hits, err := s.Search(ctx, []float64{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].RecordID != "book0" || hits[0].Distance != 0.42 {
		t.Errorf("hits: got %+v", hits)
	}
	if n, err := s.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count: got (%d, %v)", n, err)
	}
}

func TestStorage_MissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewStorage(Config{URL: srv.URL})
	hits, err := s.Search(ctx, []float64{1}, 1)
	if err != nil || len(hits) != 0 {
		t.Errorf("Search: got (%v, %v), want empty", hits, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Errorf("Clear: %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Errorf("Count: got (%d, %v)", n, err)
	}
}

func TestStorage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	if _, err := s.Search(context.Background(), []float64{1}, 1); err == nil {
		t.Fatal("expected error")
	}
}
