package ops

import (
	"context"
	"time"

	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/notes"
)

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	Content string // required, non-blank
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Chars     int       `json:"chars"`
}

// Create adds a note to the top of the collection.
// A PERSISTENCE_WRITE_FAILURE error still returns the output: the note
// exists in memory but was not written.
func Create(ctx context.Context, store *notes.Store, input CreateInput) (*CreateOutput, error) {
	n, err := store.Create(ctx, input.Content)
	if n.ID == "" {
		return nil, err
	}
	return &CreateOutput{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		Chars:     note.CountChars(n.Content),
	}, err
}
