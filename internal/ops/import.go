package ops

import (
	"context"
	"fmt"
	"io"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/notes"
)

// MaxImportBytes caps the size of an import document.
const MaxImportBytes = 32 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportFrom merges a collection document read from r. Notes whose id is
// already present are skipped; existing notes are never overwritten.
func ImportFrom(ctx context.Context, store *notes.Store, r io.Reader) (*ImportOutput, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import exceeds %d bytes", MaxImportBytes))
	}

	incoming, err := note.DecodeCollection(string(data))
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid note collection: %v", err))
	}

	imported, err := store.Import(ctx, incoming)
	return &ImportOutput{Imported: imported, Skipped: len(incoming) - imported}, err
}

// Import merges a collection document from a file.
func Import(ctx context.Context, store *notes.Store, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	path, err := importSource(cfg, input.Path)
	if err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	return ImportFrom(ctx, store, file)
}
