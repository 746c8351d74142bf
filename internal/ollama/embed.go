package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"librarian/internal/domain"
	"librarian/internal/embedding"
)

var _ domain.Embedder = (*Embedder)(nil)

// Embedder calls POST /api/embeddings and returns L2-normalized vectors.
type Embedder struct {
	*Client
	dimension atomic.Int64
}

// NewEmbedder creates an embedder; the model defaults to nomic-embed-text.
func NewEmbedder(cfg Config) *Embedder {
	return &Embedder{Client: newClient(cfg, DefaultEmbedModel)}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama:" + e.model }

// Dimension returns the vector size seen on the last successful call, or 0.
func (e *Embedder) Dimension() int { return int(e.dimension.Load()) }

// Embed returns the normalized embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}
	req := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: e.model, Prompt: text}
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := e.postJSON(ctx, "/api/embeddings", req, &out); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New("ollama embeddings: empty embedding")
	}
	e.dimension.Store(int64(len(out.Embedding)))
	return embedding.Normalize(out.Embedding), nil
}
