package ops

import (
	"context"

	"github.com/hpungsan/murmur/internal/notes"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string // required
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete removes a note. Deleting an unknown id reports Deleted=false.
func Delete(ctx context.Context, store *notes.Store, input DeleteInput) (*DeleteOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	deleted, err := store.Delete(ctx, id)
	return &DeleteOutput{Deleted: deleted, ID: id}, err
}
