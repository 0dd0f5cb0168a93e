package note

import (
	"encoding/json"
	"fmt"
	"time"
)

// record is the persisted shape of a note. Older stores wrote the
// timestamp under "date"; it is read when "createdAt" is absent.
type record struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
}

// EncodeCollection serializes notes as a JSON array of
// {"id","content","createdAt"} objects, preserving order.
func EncodeCollection(notes []Note) (string, error) {
	if notes == nil {
		notes = []Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeCollection parses a persisted collection.
// Entries without an id are dropped and duplicate ids keep their first
// occurrence, so the result always satisfies the unique-id invariant.
func DecodeCollection(data string) ([]Note, error) {
	var records []record
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("invalid note collection: %w", err)
	}

	notes := make([]Note, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true

		n := Note{ID: r.ID, Content: r.Content}
		switch {
		case r.CreatedAt != nil:
			n.CreatedAt = *r.CreatedAt
		case r.Date != nil:
			n.CreatedAt = *r.Date
		}
		notes = append(notes, n)
	}
	return notes, nil
}
