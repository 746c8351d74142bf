package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"librarian/internal/catalog"
	"librarian/internal/domain"
	"librarian/internal/recommend"
)

// Persona opens the system message of every conversation.
const Persona = "You are a helpful and conversational librarian. " +
	"Only recommend books from the list provided. " +
	"Never make up titles. Provide summaries only from the provided data. " +
	"Be friendly, concise, and informative."

// SystemPrompt is the persona followed by the catalog's title list, so the
// model knows which books it may name.
func SystemPrompt(c *catalog.Catalog) string {
	return Persona + "\n\nBooks in the collection:\n" + c.TitleList()
}

const RefusalText = "Please avoid inappropriate language."

var ErrEmptyInput = errors.New("empty input")

// Kind says which branch produced a reply.
type Kind int

const (
	KindRefused Kind = iota
	KindSummary
	KindNoMatch
	KindRecommendation
)

func (k Kind) String() string {
	switch k {
	case KindRefused:
		return "refused"
	case KindSummary:
		return "summary"
	case KindNoMatch:
		return "no-match"
	case KindRecommendation:
		return "recommendation"
	}
	return "unknown"
}

// Reply is the librarian's answer to one user turn.
type Reply struct {
	Kind     Kind
	Title    string
	Text     string
	Summary  string
	Distance float64
}

// Spoken returns the parts of the reply worth reading aloud, in order.
func (r Reply) Spoken() []string {
	var out []string
	for _, s := range []string{r.Text, r.Summary} {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Message is one entry of the conversation history.
type Message struct {
	Role    string
	Content string
}

// Matcher picks a book title for free text.
type Matcher interface {
	Match(ctx context.Context, query string) (recommend.Result, error)
}

// Moderator flags input that must not be answered.
type Moderator interface {
	Contains(text string) bool
}

// Options tune a Librarian.
type Options struct {
	// TurnTimeout bounds all external calls made for one user turn.
	TurnTimeout time.Duration
}

// Librarian runs the conversation: moderation, explicit summary requests,
// similarity matching and recommendation wording.
type Librarian struct {
	catalog   *catalog.Catalog
	matcher   Matcher
	generator domain.Generator
	moderator Moderator
	timeout   time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	history []Message
}

func NewLibrarian(c *catalog.Catalog, m Matcher, g domain.Generator, mod Moderator, opts Options, log *slog.Logger) *Librarian {
	if log == nil {
		log = slog.Default()
	}
	return &Librarian{
		catalog:   c,
		matcher:   m,
		generator: g,
		moderator: mod,
		timeout:   opts.TurnTimeout,
		log:       log,
		history:   []Message{{Role: "system", Content: SystemPrompt(c)}},
	}
}

// RecommendationPrompt is the generation prompt for a matched title.
func RecommendationPrompt(title, input string) string {
	return fmt.Sprintf("You are a helpful librarian. Respond to the user in one friendly sentence "+
		"recommending the book '%s' without rephrasing its summary and give the correct authors\n"+
		"User: %s", title, input)
}

// Respond answers one user turn.
func (l *Librarian) Respond(ctx context.Context, input string) (Reply, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reply{}, ErrEmptyInput
	}
	if l.moderator != nil && l.moderator.Contains(input) {
		l.log.Info("input refused by moderation")
		return Reply{Kind: KindRefused, Text: RefusalText}, nil
	}
	if book, ok := l.catalog.RequestedSummary(input); ok {
		l.remember(input, book.Summary)
		return Reply{Kind: KindSummary, Title: book.Title, Summary: book.Summary}, nil
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	res, err := l.matcher.Match(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("match: %w", err)
	}
	if !res.Matched {
		l.log.Info("no book matched", "distance", res.Distance)
		l.remember(input, res.Reason)
		return Reply{Kind: KindNoMatch, Text: res.Reason, Distance: res.Distance}, nil
	}
	summary, _ := l.catalog.Summary(res.Title)
	text, err := l.generator.Generate(ctx, RecommendationPrompt(res.Title, input))
	if err != nil {
		return Reply{}, fmt.Errorf("generate: %w", err)
	}
	l.log.Info("recommended", "title", res.Title, "distance", res.Distance)
	l.remember(input, text+"\n"+summary)
	return Reply{Kind: KindRecommendation, Title: res.Title, Text: text, Summary: summary, Distance: res.Distance}, nil
}

// History returns a copy of the conversation so far, starting with the
// system persona.
func (l *Librarian) History() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.history))
	copy(out, l.history)
	return out
}

// Books returns the number of books the librarian knows about.
func (l *Librarian) Books() int { return l.catalog.Len() }

func (l *Librarian) remember(user, assistant string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history,
		Message{Role: "user", Content: user},
		Message{Role: "assistant", Content: assistant})
}
