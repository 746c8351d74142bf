// Package index embeds the catalog into a vector store and answers
// similarity queries against it.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"librarian/internal/catalog"
	"librarian/internal/domain"
)

var _ domain.Searcher = (*Index)(nil)

// Locker is implemented by stores that guard rebuilds across processes.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Replacer is implemented by stores that can swap their whole contents in
// one step, recording the fingerprint of the build.
type Replacer interface {
	Replace(ctx context.Context, dimension int, entries []domain.Entry, fingerprint string) error
}

// Fingerprinter is implemented by persistent stores that remember the
// fingerprint of their last full build.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// Index couples an embedder with a vector store.
type Index struct {
	embedder domain.Embedder
	store    domain.VectorStore
	log      *slog.Logger
}

func New(embedder domain.Embedder, store domain.VectorStore, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{embedder: embedder, store: store, log: log}
}

// Fingerprint identifies the data an index built from c would hold: the
// embedder and every record ID, title and summary in order.
func (x *Index) Fingerprint(c *catalog.Catalog) string {
	h := sha256.New()
	io.WriteString(h, x.embedder.Name())
	for i, b := range c.Books() {
		fmt.Fprintf(h, "\x00%s\x00%s\x00%s", catalog.RecordID(i), b.Title, b.Summary)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Current reports whether the store already holds the build for c. Stores
// that cannot remember a fingerprint are never current.
func (x *Index) Current(ctx context.Context, c *catalog.Catalog) (bool, error) {
	f, ok := x.store.(Fingerprinter)
	if !ok {
		return false, nil
	}
	stored, err := f.Fingerprint(ctx)
	if err != nil {
		return false, fmt.Errorf("read fingerprint: %w", err)
	}
	return stored != "" && stored == x.Fingerprint(c), nil
}

// Build replaces the store contents with one vector per book summary and
// returns the number of indexed books. Every summary is embedded before the
// store is touched, so a failed build keeps the previous index.
func (x *Index) Build(ctx context.Context, c *catalog.Catalog) (int, error) {
	if l, ok := x.store.(Locker); ok {
		unlock, err := l.Lock(ctx)
		if err != nil {
			return 0, err
		}
		defer unlock()
	}
	books := c.Books()
	if len(books) == 0 {
		if err := x.store.Clear(ctx); err != nil {
			return 0, fmt.Errorf("clear store: %w", err)
		}
		x.log.Warn("catalog is empty; index left uninitialized")
		return 0, nil
	}
	entries := make([]domain.Entry, len(books))
	for i, b := range books {
		text := b.Summary
		if text == "" {
			text = b.Title
		}
		vec, err := x.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed %q: %w", b.Title, err)
		}
		if i > 0 && len(vec) != len(entries[0].Vector) {
			return 0, fmt.Errorf("embed %q: dimension %d differs from %d", b.Title, len(vec), len(entries[0].Vector))
		}
		entries[i] = domain.Entry{RecordID: catalog.RecordID(i), Title: b.Title, Vector: vec}
	}
	dim := len(entries[0].Vector)
	if err := x.replace(ctx, dim, entries, x.Fingerprint(c)); err != nil {
		return 0, err
	}
	x.log.Info("index built", "books", len(entries), "embedder", x.embedder.Name(), "dimension", dim)
	return len(entries), nil
}

func (x *Index) replace(ctx context.Context, dim int, entries []domain.Entry, fingerprint string) error {
	if r, ok := x.store.(Replacer); ok {
		if err := r.Replace(ctx, dim, entries, fingerprint); err != nil {
			return fmt.Errorf("replace store: %w", err)
		}
		return nil
	}
	if err := x.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if err := x.store.Init(ctx, dim); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if err := x.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Search embeds text and returns up to topK nearest records.
func (x *Index) Search(ctx context.Context, text string, topK int) ([]domain.Candidate, error) {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := x.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}
	out := make([]domain.Candidate, 0, len(hits))
	for _, h := range hits {
		if h.RecordID == "" {
			return nil, errors.New("search store: hit without record id")
		}
		out = append(out, domain.Candidate{RecordID: h.RecordID, Distance: h.Distance})
	}
	x.log.Debug("index search", "top_k", topK, "hits", len(out))
	return out, nil
}

// Count reports how many vectors the store holds.
func (x *Index) Count(ctx context.Context) (int, error) {
	return x.store.Count(ctx)
}
