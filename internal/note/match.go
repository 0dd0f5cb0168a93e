package note

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Matcher performs locale-aware, case-insensitive substring matching.
// It is safe for concurrent use.
type Matcher struct {
	tag language.Tag
}

// NewMatcher returns a Matcher for a BCP 47 locale.
// Unparseable or empty locales fall back to language-neutral casing.
func NewMatcher(locale string) *Matcher {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &Matcher{tag: tag}
}

// Tag returns the language tag used for case mapping.
func (m *Matcher) Tag() language.Tag {
	return m.tag
}

// Lower lowercases s using the matcher's language rules.
func (m *Matcher) Lower(s string) string {
	// Casers carry state and must not be shared between goroutines
	return cases.Lower(m.tag).String(s)
}

// Contains reports whether content contains query, ignoring case.
// An empty query matches everything.
func (m *Matcher) Contains(content, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(m.Lower(content), m.Lower(query))
}

// Filter returns the notes whose content contains query, preserving order.
// The result is always a fresh slice.
func (m *Matcher) Filter(notes []Note, query string) []Note {
	out := make([]Note, 0, len(notes))
	if query == "" {
		return append(out, notes...)
	}
	q := m.Lower(query)
	for _, n := range notes {
		if strings.Contains(m.Lower(n.Content), q) {
			out = append(out, n)
		}
	}
	return out
}
