package ops

import (
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/notes"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Query  string // optional, case-insensitive substring
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []note.Summary `json:"items"`
	Query      string         `json:"query,omitempty"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// List returns note summaries, newest first, filtered by Query.
func List(store *notes.Store, input ListInput) (*ListOutput, error) {
	limit := clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	matched := store.Search(input.Query)
	total := len(matched)

	start := min(offset, total)
	end := min(start+limit, total)

	items := make([]note.Summary, 0, end-start)
	for _, n := range matched[start:end] {
		items = append(items, n.ToSummary())
	}

	return &ListOutput{
		Items: items,
		Query: input.Query,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: end < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
