package db

import (
	"context"
	"database/sql"
	"time"
)

// KV is a flat key-value association backed by the kv table.
// Values are opaque text; callers own the encoding.
type KV struct {
	db *sql.DB
}

// NewKV wraps an initialized database.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the value stored under key. ok is false if the key is absent.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	return Get(ctx, k.db, key)
}

// Put stores value under key, replacing any previous value.
func (k *KV) Put(ctx context.Context, key, value string) error {
	return Put(ctx, k.db, key, value)
}

// Get reads a single key.
func Get(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put upserts a single key.
func Put(ctx context.Context, db *sql.DB, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query, key, value, time.Now().Unix())
	return err
}
