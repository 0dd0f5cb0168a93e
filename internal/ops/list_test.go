package ops

import (
	"fmt"
	"testing"

	"github.com/hpungsan/murmur/internal/notes"
)

func TestList_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ids := seed(t, store, "first", "second", "third")

	out, err := List(store, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(out.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(out.Items))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if out.Items[i].ID != want {
			t.Errorf("Items[%d].ID = %q, want %q", i, out.Items[i].ID, want)
		}
	}
	if out.Sort != "created_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}
	if out.Pagination.Total != 3 || out.Pagination.HasMore {
		t.Errorf("Pagination = %+v", out.Pagination)
	}
}

func TestList_Empty(t *testing.T) {
	store := newTestStore(t)

	out, err := List(store, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
	if out.Pagination.Limit != DefaultListLimit {
		t.Errorf("Limit = %d, want %d", out.Pagination.Limit, DefaultListLimit)
	}
}

func TestList_Query(t *testing.T) {
	store := newTestStore(t, withEnglish())
	seed(t, store, "ABCdef", "xyz", "abc again")

	out, err := List(store, ListInput{Query: "bc"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Items[0].Preview != "abc again" || out.Items[1].Preview != "ABCdef" {
		t.Errorf("Items = %+v", out.Items)
	}
	if out.Query != "bc" {
		t.Errorf("Query = %q", out.Query)
	}
	if out.Pagination.Total != 2 {
		t.Errorf("Total = %d, want 2", out.Pagination.Total)
	}
}

func TestList_Pagination(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		seed(t, store, fmt.Sprintf("note %d", i))
	}

	out, err := List(store, ListInput{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Items[0].Preview != "note 3" {
		t.Errorf("Items[0].Preview = %q, want %q", out.Items[0].Preview, "note 3")
	}
	if !out.Pagination.HasMore {
		t.Error("HasMore = false, want true")
	}

	out, err = List(store, ListInput{Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 0 || out.Pagination.HasMore {
		t.Errorf("offset past end: Items = %d, HasMore = %v", len(out.Items), out.Pagination.HasMore)
	}

	out, err = List(store, ListInput{Offset: -3, Limit: 1000})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Offset != 0 || out.Pagination.Limit != MaxListLimit {
		t.Errorf("Pagination = %+v", out.Pagination)
	}
}

func withEnglish() notes.Option {
	return notes.WithLocale("en-US")
}
