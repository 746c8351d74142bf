package ollama

import (
	"context"
	"fmt"
	"strings"

	"librarian/internal/domain"
)

var _ domain.Generator = (*Generator)(nil)

// Generator calls POST /api/generate with streaming disabled.
type Generator struct {
	*Client
	system string
}

// NewGenerator creates a generator; the model defaults to gpt-oss:20b.
func NewGenerator(cfg Config) *Generator {
	return &Generator{Client: newClient(cfg, DefaultGenerateModel), system: cfg.System}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate returns the model's completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		System string `json:"system,omitempty"`
		Stream bool   `json:"stream"`
	}{Model: g.model, Prompt: prompt, System: g.system}
	var out struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := g.postJSON(ctx, "/api/generate", req, &out); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}
