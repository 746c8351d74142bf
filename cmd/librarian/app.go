package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"librarian/internal/catalog"
	"librarian/internal/config"
	"librarian/internal/domain"
	"librarian/internal/index"
	"librarian/internal/logging"
	"librarian/internal/moderation"
	"librarian/internal/ollama"
	"librarian/internal/openai"
	"librarian/internal/recommend"
	"librarian/internal/service"
	"librarian/internal/speech"
	"librarian/internal/vectorstore"
	"librarian/internal/vectorstore/memory"
	"librarian/internal/vectorstore/qdrant"
	"librarian/internal/vectorstore/sqlite"
)

// app holds every component assembled from the config for one command run.
type app struct {
	cfg          *config.AppConfig
	log          *slog.Logger
	catalog      *catalog.Catalog
	store        vectorstore.Storage
	index        *index.Index
	librarian    *service.Librarian
	speaker      domain.Speaker
	listener     domain.Listener
	embedderName string

	closers []func() error
}

func newApp(cfgPath string) (*app, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger, closers: []func() error{closeLog}}

	a.catalog, err = catalog.Load(cfg.Corpus.Path)
	if err != nil {
		a.Close()
		return nil, err
	}

	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	a.embedderName = emb.Name()

	a.store, err = buildStore(cfg.VectorStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("vector store init failed: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	gen, err := buildGenerator(cfg.Generator, service.SystemPrompt(a.catalog))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("generator init failed: %w", err)
	}

	a.speaker, a.listener, err = buildSpeech(cfg.Speech, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.index = index.New(emb, a.store, logger.With("component", "index"))
	matcher := recommend.NewMatcher(a.index, a.catalog, cfg.Matcher.Threshold)
	a.librarian = service.NewLibrarian(
		a.catalog,
		matcher,
		gen,
		moderation.New(cfg.Moderation.Enabled, allowedPhrases(cfg.Moderation, a.catalog)...),
		service.Options{TurnTimeout: cfg.TurnTimeout()},
		logger.With("component", "librarian"),
	)
	logger.Info("librarian ready",
		"books", a.catalog.Len(),
		"embedder", a.embedderName,
		"store", cfg.VectorStore.Type,
		"threshold", matcher.Threshold(),
	)
	return a, nil
}

// ensureIndex rebuilds the store unless it already holds the build for the
// current catalog and embedder. Stores that keep no fingerprint (memory,
// qdrant) are rebuilt on every start.
func (a *app) ensureIndex(ctx context.Context, force bool) error {
	if !force {
		current, err := a.index.Current(ctx, a.catalog)
		if err != nil {
			return err
		}
		if current {
			a.log.Debug("reusing stored index", "books", a.catalog.Len())
			return nil
		}
	}
	if _, err := a.index.Build(ctx, a.catalog); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	return nil
}

// Close releases the store and the log file, in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}

func buildEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "ollama":
		return ollama.NewEmbedder(ollamaConfig(cfg.Ollama)), nil
	case "openai":
		return openai.NewEmbedder(openAIConfig(cfg.OpenAI))
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func buildGenerator(cfg config.GeneratorConfig, system string) (domain.Generator, error) {
	switch cfg.Type {
	case "ollama":
		oc := ollamaConfig(cfg.Ollama)
		oc.System = system
		return ollama.NewGenerator(oc), nil
	case "openai":
		return openai.NewChatGenerator(openAIConfig(cfg.OpenAI), openai.ChatOptions{
			System:      system,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

func buildStore(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "sqlite":
		return sqlite.New(cfg.SQLite.Path)
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    seconds(cfg.Qdrant.TimeoutSecs),
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func buildSpeech(cfg config.SpeechConfig, log *slog.Logger) (domain.Speaker, domain.Listener, error) {
	noop := speech.NewNoOp(log.With("component", "speech"))
	var (
		speaker  domain.Speaker  = noop
		listener domain.Listener = noop
	)
	if len(cfg.TTSCommand) > 0 {
		s, err := speech.NewCommandSpeaker(cfg.TTSCommand)
		if err != nil {
			return nil, nil, err
		}
		speaker = s
	}
	if len(cfg.STTCommand) > 0 {
		l, err := speech.NewCommandListener(cfg.STTCommand)
		if err != nil {
			return nil, nil, err
		}
		listener = l
	}
	return speaker, listener, nil
}

func allowedPhrases(cfg config.ModerationConfig, c *catalog.Catalog) []string {
	out := append([]string(nil), cfg.Allow...)
	for _, b := range c.Books() {
		out = append(out, b.Title)
	}
	return out
}

func ollamaConfig(c *config.OllamaConfig) ollama.Config {
	return ollama.Config{
		BaseURL:    c.BaseURL,
		Model:      c.Model,
		Timeout:    seconds(c.TimeoutSecs),
		MaxRetries: c.MaxRetries,
	}
}

func openAIConfig(c *config.OpenAIConfig) openai.Config {
	return openai.Config{
		BaseURL:    c.BaseURL,
		APIKeyEnv:  c.APIKeyEnv,
		Model:      c.Model,
		Timeout:    seconds(c.TimeoutSecs),
		MaxRetries: c.MaxRetries,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
