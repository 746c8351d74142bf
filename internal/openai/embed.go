package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"librarian/internal/domain"
	"librarian/internal/embedding"
)

var _ domain.Embedder = (*Embedder)(nil)

// Embedder is an OpenAI-compatible embeddings client.
type Embedder struct {
	*Client
	dimension atomic.Int64
}

// NewEmbedder creates an embeddings client; the model defaults to
// text-embedding-3-small.
func NewEmbedder(cfg Config) (*Embedder, error) {
	c, err := newClient(cfg, "text-embedding-3-small")
	if err != nil {
		return nil, err
	}
	return &Embedder{Client: c}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "openai:" + e.model }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is known after the first successful call.
func (e *Embedder) Dimension() int { return int(e.dimension.Load()) }

// Embed returns the normalized embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	body := struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}{Input: text, Model: e.model}
	payload, err := e.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	v, err := decodeEmbedding(payload)
	if err != nil {
		return nil, err
	}
	e.dimension.Store(int64(len(v)))
	return embedding.Normalize(v), nil
}

// decodeEmbedding accepts the OpenAI response shape and falls back to the
// Ollama-native { "embedding": [...] } shape.
func decodeEmbedding(payload []byte) ([]float64, error) {
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, nil
		}
	}
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}
