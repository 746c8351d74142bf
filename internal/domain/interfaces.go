package domain

import "context"

// Book is a single title/summary record loaded from the corpus file.
type Book struct {
	Title   string
	Summary string
}

// Entry is an embedded book as handed to a vector store.
type Entry struct {
	RecordID string
	Title    string
	Vector   []float64
}

// Hit is a stored entry returned by a vector store together with its
// Euclidean distance to the query vector. Smaller is closer.
type Hit struct {
	RecordID string
	Title    string
	Distance float64
}

// Candidate is what the search collaborator reports for a query.
type Candidate struct {
	RecordID string
	Distance float64
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore persists vectors and supports nearest-neighbour search by
// Euclidean distance.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float64, topK int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// Searcher embeds text and returns the nearest indexed records.
// It returns an empty slice when the index is empty or uninitialized.
type Searcher interface {
	Search(ctx context.Context, text string, topK int) ([]Candidate, error)
}

// Generator produces a single completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Speaker reads text aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Listener captures one spoken utterance and returns its transcript.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}
