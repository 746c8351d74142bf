package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"librarian/internal/domain"
)

const titleMarker = "## Title: "

// summaryKeyword marks an explicit request for a book's stored summary.
const summaryKeyword = "summary"

var (
	ErrEmptyCorpus    = errors.New("corpus contains no books")
	ErrEmptyTitle     = errors.New("book with empty title")
	ErrDuplicateTitle = errors.New("duplicate book title")
)

// Catalog is the immutable, ordered set of books loaded at startup together
// with a case-insensitive title lookup.
type Catalog struct {
	books   []domain.Book
	byTitle map[string]int
}

// New builds a catalog from books in the given order. Titles must be unique
// ignoring case and must not be empty.
func New(books []domain.Book) (*Catalog, error) {
	c := &Catalog{
		books:   make([]domain.Book, 0, len(books)),
		byTitle: make(map[string]int, len(books)),
	}
	for _, b := range books {
		title := strings.TrimSpace(b.Title)
		if title == "" {
			return nil, ErrEmptyTitle
		}
		key := fold(title)
		if _, ok := c.byTitle[key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
		}
		c.byTitle[key] = len(c.books)
		c.books = append(c.books, domain.Book{Title: title, Summary: b.Summary})
	}
	return c, nil
}

// Load reads and parses a corpus file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	return c, nil
}

// Parse reads books in the "## Title: <title>" block format. Anything before
// the first marker is ignored. The first line of a block is the title and the
// remaining non-blank lines are joined with single spaces into the summary.
func Parse(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	blocks := strings.Split(string(data), titleMarker)
	if len(blocks) < 2 {
		return nil, ErrEmptyCorpus
	}
	books := make([]domain.Book, 0, len(blocks)-1)
	for _, block := range blocks[1:] {
		block = strings.ReplaceAll(block, "\r\n", "\n")
		lines := strings.Split(strings.TrimRight(strings.TrimLeft(block, " \t"), " \t\n"), "\n")
		var parts []string
		for _, line := range lines[1:] {
			if l := strings.TrimSpace(line); l != "" {
				parts = append(parts, l)
			}
		}
		books = append(books, domain.Book{
			Title:   strings.TrimSpace(lines[0]),
			Summary: strings.Join(parts, " "),
		})
	}
	return New(books)
}

// Len returns the number of books.
func (c *Catalog) Len() int { return len(c.books) }

// Books returns a copy of the books in corpus order.
func (c *Catalog) Books() []domain.Book {
	out := make([]domain.Book, len(c.books))
	copy(out, c.books)
	return out
}

// RecordID returns the positional record identifier of the i-th book.
func RecordID(i int) string { return "book" + strconv.Itoa(i) }

// Book resolves a record identifier produced by RecordID.
func (c *Catalog) Book(recordID string) (domain.Book, bool) {
	n, ok := strings.CutPrefix(recordID, "book")
	if !ok {
		return domain.Book{}, false
	}
	i, err := strconv.Atoi(n)
	if err != nil || i < 0 || i >= len(c.books) || RecordID(i) != recordID {
		return domain.Book{}, false
	}
	return c.books[i], true
}

// Summary looks a book's summary up by title, ignoring case and surrounding
// whitespace.
func (c *Catalog) Summary(title string) (string, bool) {
	i, ok := c.byTitle[fold(strings.TrimSpace(title))]
	if !ok {
		return "", false
	}
	return c.books[i].Summary, true
}

// RequestedSummary reports the first book, in corpus order, whose title
// appears in input when input also asks for a summary.
func (c *Catalog) RequestedSummary(input string) (domain.Book, bool) {
	in := fold(input)
	if !strings.Contains(in, summaryKeyword) {
		return domain.Book{}, false
	}
	for _, b := range c.books {
		if strings.Contains(in, fold(b.Title)) {
			return b, true
		}
	}
	return domain.Book{}, false
}

// TitleList renders the titles as a "- Title" bullet list.
func (c *Catalog) TitleList() string {
	lines := make([]string, len(c.books))
	for i, b := range c.books {
		lines[i] = "- " + b.Title
	}
	return strings.Join(lines, "\n")
}

func fold(s string) string {
	return cases.Fold().String(s)
}
