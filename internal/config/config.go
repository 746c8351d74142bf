package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CorpusConfig points at the static book list.
type CorpusConfig struct {
	Path string `yaml:"path"`
}

// OllamaConfig holds connection details for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// GeneratorConfig selects and configures the language model used to word
// recommendations.
type GeneratorConfig struct {
	Type   string        `yaml:"type"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig locates the persistent index file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MatcherConfig sets the distance threshold for accepting a match.
type MatcherConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ModerationConfig toggles the profanity filter. Allow lists extra phrases
// (author names, titles) that must never be refused; catalog titles are
// always allowed.
type ModerationConfig struct {
	Enabled bool     `yaml:"enabled"`
	Allow   []string `yaml:"allow,omitempty"`
}

// SpeechConfig configures optional voice output and input. Commands are
// argv lists; an empty command disables that direction.
type SpeechConfig struct {
	TTSEnabled bool     `yaml:"tts_enabled"`
	TTSCommand []string `yaml:"tts_command"`
	STTCommand []string `yaml:"stt_command"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus          CorpusConfig      `yaml:"corpus"`
	Embedder        EmbedderConfig    `yaml:"embedder"`
	VectorStore     VectorStoreConfig `yaml:"vector_store"`
	Generator       GeneratorConfig   `yaml:"generator"`
	Matcher         MatcherConfig     `yaml:"matcher"`
	Moderation      ModerationConfig  `yaml:"moderation"`
	Speech          SpeechConfig      `yaml:"speech"`
	Log             LogConfig         `yaml:"log"`
	TurnTimeoutSecs int               `yaml:"turn_timeout_secs"`
}

// TurnTimeout returns the per-turn deadline for external calls.
func (c *AppConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	// Unmarshal over defaults so omitted sections keep their values.
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/librarian/config.yaml.
// If neither exists, it writes defaults to ~/.config/librarian/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown component types and impossible values.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedder: %q", c.Embedder.Type)
	}
	switch c.Generator.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown generator: %q", c.Generator.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "sqlite", "qdrant":
	default:
		return fmt.Errorf("unknown vector store: %q", c.VectorStore.Type)
	}
	if c.VectorStore.Type == "qdrant" && c.VectorStore.Qdrant.URL == "" {
		return errors.New("vector_store.qdrant.url is required")
	}
	if c.Matcher.Threshold <= 0 {
		return fmt.Errorf("matcher.threshold must be positive, got %v", c.Matcher.Threshold)
	}
	if c.Corpus.Path == "" {
		return errors.New("corpus.path is required")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "librarian", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Corpus:          CorpusConfig{Path: "data/books.txt"},
		Embedder:        EmbedderConfig{Type: "ollama"},
		VectorStore:     VectorStoreConfig{Type: "sqlite"},
		Generator:       GeneratorConfig{Type: "ollama"},
		Matcher:         MatcherConfig{Threshold: 0.85},
		Moderation:      ModerationConfig{Enabled: true},
		Speech:          SpeechConfig{TTSEnabled: false, TTSCommand: []string{"espeak", "-s", "150"}},
		Log:             LogConfig{Level: "info", File: "librarian.log"},
		TurnTimeoutSecs: 180,
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Matcher.Threshold == 0 {
		cfg.Matcher.Threshold = 0.85
	}
	if cfg.TurnTimeoutSecs == 0 {
		cfg.TurnTimeoutSecs = 180
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Embedder.Type {
	case "ollama":
		cfg.Embedder.Ollama = ollamaDefaults(cfg.Embedder.Ollama, "nomic-embed-text", 30)
	case "openai":
		cfg.Embedder.OpenAI = openAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}
	switch cfg.Generator.Type {
	case "ollama":
		cfg.Generator.Ollama = ollamaDefaults(cfg.Generator.Ollama, "gpt-oss:20b", 180)
	case "openai":
		cfg.Generator.OpenAI = openAIDefaults(cfg.Generator.OpenAI, "gpt-4o-mini")
	}
	switch cfg.VectorStore.Type {
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = "librarian.db"
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "books"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
}

func ollamaDefaults(c *OllamaConfig, model string, timeoutSecs int) *OllamaConfig {
	if c == nil {
		c = &OllamaConfig{}
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeoutSecs
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	return c
}

func openAIDefaults(c *OpenAIConfig, model string) *OpenAIConfig {
	if c == nil {
		c = &OpenAIConfig{}
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	return c
}

// applyEnvOverrides lets OLLAMA_HOST and QDRANT_API_KEY (typically from .env)
// take precedence over the file.
func applyEnvOverrides(cfg *AppConfig) {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if cfg.Embedder.Ollama != nil {
			cfg.Embedder.Ollama.BaseURL = host
		}
		if cfg.Generator.Ollama != nil {
			cfg.Generator.Ollama.BaseURL = host
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" && cfg.VectorStore.Qdrant != nil {
		cfg.VectorStore.Qdrant.APIKey = key
	}
}
