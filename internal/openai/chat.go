package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"librarian/internal/domain"
)

var _ domain.Generator = (*ChatGenerator)(nil)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		FinishReason string      `json:"finish_reason"`
		Message      ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatGenerator produces completions through /chat/completions with a fixed
// system message.
type ChatGenerator struct {
	*Client
	system      string
	temperature float64
	maxTokens   int
}

// ChatOptions tune the chat request.
type ChatOptions struct {
	System      string
	Temperature float64
	MaxTokens   int
}

// NewChatGenerator creates a chat completion client; the model defaults to
// gpt-4o-mini.
func NewChatGenerator(cfg Config, opts ChatOptions) (*ChatGenerator, error) {
	c, err := newClient(cfg, "gpt-4o-mini")
	if err != nil {
		return nil, err
	}
	return &ChatGenerator{Client: c, system: opts.System, temperature: opts.Temperature, maxTokens: opts.MaxTokens}, nil
}

// Generate sends prompt as the user message and returns the first choice.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := ChatRequest{Model: g.model, Temperature: g.temperature, MaxTokens: g.maxTokens}
	if g.system != "" {
		req.Messages = append(req.Messages, ChatMessage{Role: "system", Content: g.system})
	}
	req.Messages = append(req.Messages, ChatMessage{Role: "user", Content: prompt})

	payload, err := g.post(ctx, "/chat/completions", req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	var resp ChatResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("empty response from LLM")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
