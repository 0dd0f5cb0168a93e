package ops

import (
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/notes"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string // required
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	note.Note
	Chars int `json:"chars"`
}

// Fetch retrieves a single note by id.
func Fetch(store *notes.Store, input FetchInput) (*FetchOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	n, ok := store.Get(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}

	return &FetchOutput{
		Note:  n,
		Chars: note.CountChars(n.Content),
	}, nil
}
