package note

import (
	"crypto/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// PreviewChars is the rune length of Summary.Preview.
const PreviewChars = 120

// Note is a single user-authored memo.
type Note struct {
	// ID is a ULID assigned at creation; immutable and never reused
	ID string `json:"id"`

	// Content is the note text, typed or dictated
	Content string `json:"content"`

	// CreatedAt is assigned at creation and never changes
	CreatedAt time.Time `json:"createdAt"`
}

// New builds a note with a fresh ID stamped at now.
func New(content string, now time.Time) (Note, error) {
	id, err := NewID(now)
	if err != nil {
		return Note{}, err
	}
	return Note{ID: id, Content: content, CreatedAt: now}, nil
}

// NewID generates a new ULID for the given time.
func NewID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsBlank reports whether content has no visible text.
func IsBlank(content string) bool {
	return strings.TrimSpace(content) == ""
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// Summary is a note without its full content, used by list views.
type Summary struct {
	ID        string    `json:"id"`
	Preview   string    `json:"preview"`
	Chars     int       `json:"chars"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToSummary converts a Note to a Summary with a single-line preview.
func (n Note) ToSummary() Summary {
	return Summary{
		ID:        n.ID,
		Preview:   Preview(n.Content, PreviewChars),
		Chars:     CountChars(n.Content),
		CreatedAt: n.CreatedAt,
	}
}

// Preview collapses whitespace and truncates text to max runes, adding an ellipsis.
func Preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max])) + "…"
}
