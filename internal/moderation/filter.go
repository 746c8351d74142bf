// Package moderation screens user input before it reaches the models.
package moderation

import (
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
)

// literaryFalsePositives are author and title fragments that the default
// dictionary flags because it matches inside words with spaces removed.
var literaryFalsePositives = []string{
	"dickens",
	"dickinson",
	"mobydick",
	"philipkdick",
	"hitchcock",
	"middlesex",
	"essex",
	"cumming",
	"titus",
}

// Filter reports whether text contains profanity. A disabled filter lets
// everything through.
type Filter struct {
	detector *goaway.ProfanityDetector
}

// New returns a filter; enabled=false yields a pass-through filter. Phrases
// in allow (book titles, author names) are never reported, whatever their
// case or spacing.
func New(enabled bool, allow ...string) *Filter {
	if !enabled {
		return &Filter{}
	}
	falsePositives := append([]string(nil), goaway.DefaultFalsePositives...)
	falsePositives = append(falsePositives, literaryFalsePositives...)
	for _, phrase := range allow {
		if p := squash(phrase); p != "" {
			falsePositives = append(falsePositives, p)
		}
	}
	d := goaway.NewProfanityDetector().
		WithCustomDictionary(goaway.DefaultProfanities, falsePositives, goaway.DefaultFalseNegatives)
	return &Filter{detector: d}
}

func (f *Filter) Contains(text string) bool {
	if f == nil || f.detector == nil {
		return false
	}
	return f.detector.IsProfane(text)
}

// squash lowercases phrase and keeps only letters, which is how the
// detector sees text once spaces and punctuation are stripped.
func squash(phrase string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(phrase) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
