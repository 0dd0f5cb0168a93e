package db

import (
	"context"
	"testing"
)

func TestGet_Missing(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer database.Close()

	value, ok, err := Get(context.Background(), database, "notes")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Errorf("ok = true, want false for missing key")
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestPut_ThenGet(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if err := Put(ctx, database, "notes", `[]`); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	value, ok, err := Get(ctx, database, "notes")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || value != `[]` {
		t.Errorf("Get() = (%q, %v), want (%q, true)", value, ok, `[]`)
	}
}

func TestPut_Overwrites(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer database.Close()

	kv := NewKV(database)
	ctx := context.Background()

	if err := kv.Put(ctx, "notes", "first"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := kv.Put(ctx, "notes", "second"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	value, ok, err := kv.Get(ctx, "notes")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || value != "second" {
		t.Errorf("Get() = (%q, %v), want (%q, true)", value, ok, "second")
	}

	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1 (upsert, not insert)", count)
	}
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := NewKV(db1).Put(ctx, "notes", `[{"id":"a"}]`); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	db1.Close()

	db2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db2.Close()

	value, ok, err := NewKV(db2).Get(ctx, "notes")
	if err != nil || !ok {
		t.Fatalf("Get() = (%q, %v, %v)", value, ok, err)
	}
	if value != `[{"id":"a"}]` {
		t.Errorf("value = %q", value)
	}
}

func TestGet_ContextCanceled(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := Get(ctx, database, "notes"); err == nil {
		t.Error("Get() with canceled context error = nil, want error")
	}
}
