package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"librarian/internal/catalog"
	"librarian/internal/domain"
)

const corpus = `Books used by the librarian.

## Title: 1984
A dystopian society under constant surveillance.
  Big Brother watches everyone.

## Title: The Hobbit
Bilbo Baggins joins a company of dwarves
on a quest for treasure.
`

func TestParse(t *testing.T) {
	c, err := catalog.Parse(strings.NewReader(corpus))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", c.Len())
	}
	books := c.Books()
	if books[0].Title != "1984" {
		t.Errorf("title: got %q, want %q", books[0].Title, "1984")
	}
	want := "A dystopian society under constant surveillance. Big Brother watches everyone."
	if books[0].Summary != want {
		t.Errorf("summary: got %q, want %q", books[0].Summary, want)
	}
	if books[1].Title != "The Hobbit" {
		t.Errorf("title: got %q, want %q", books[1].Title, "The Hobbit")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"no marker", "just text", catalog.ErrEmptyCorpus},
		{"empty title", "## Title: \nsummary", catalog.ErrEmptyTitle},
		{"duplicate", "## Title: Dune\na\n## Title: dune\nb", catalog.ErrDuplicateTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Parse(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.txt")
	if err := os.WriteFile(path, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", c.Len())
	}
	if _, err := catalog.Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSummaryLookup(t *testing.T) {
	c, err := catalog.New([]domain.Book{{Title: "The Hobbit", Summary: "quest"}})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := c.Summary("  the hobbit "); !ok || s != "quest" {
		t.Errorf("Summary: got (%q, %v)", s, ok)
	}
	if _, ok := c.Summary("Dune"); ok {
		t.Error("Summary for unknown title should miss")
	}
}

func TestBookByRecordID(t *testing.T) {
	c, err := catalog.New([]domain.Book{{Title: "A"}, {Title: "B"}})
	if err != nil {
		t.Fatal(err)
	}
	b, ok := c.Book(catalog.RecordID(1))
	if !ok || b.Title != "B" {
		t.Fatalf("Book(book1): got (%q, %v)", b.Title, ok)
	}
	for _, id := range []string{"book2", "book-1", "book01", "x0", ""} {
		if _, ok := c.Book(id); ok {
			t.Errorf("Book(%q) should miss", id)
		}
	}
}

func TestRequestedSummary(t *testing.T) {
	c, err := catalog.Parse(strings.NewReader(corpus))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		input string
		title string
		ok    bool
	}{
		{"Give me the SUMMARY of the hobbit", "The Hobbit", true},
		{"summary for 1984 please", "1984", true},
		{"tell me about the hobbit", "", false},
		{"a summary of something else", "", false},
	}
	for _, tt := range tests {
		b, ok := c.RequestedSummary(tt.input)
		if ok != tt.ok || b.Title != tt.title {
			t.Errorf("RequestedSummary(%q): got (%q, %v), want (%q, %v)", tt.input, b.Title, ok, tt.title, tt.ok)
		}
	}
}

func TestTitleList(t *testing.T) {
	c, err := catalog.Parse(strings.NewReader(corpus))
	if err != nil {
		t.Fatal(err)
	}
	want := "- 1984\n- The Hobbit"
	if got := c.TitleList(); got != want {
		t.Errorf("TitleList: got %q, want %q", got, want)
	}
}
