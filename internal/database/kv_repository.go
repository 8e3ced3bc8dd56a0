package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// KVRepository stores opaque string records by key
type KVRepository struct {
	db *sqlx.DB
}

// NewKVRepository creates a new repository instance
func NewKVRepository(db *sqlx.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value at key; ok is false when the key is absent
func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	query := r.db.Rebind("SELECT value FROM kv_store WHERE record_key = ?")
	err := r.db.GetContext(ctx, &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get record %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value at key
func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	query := r.db.Rebind(`
		INSERT INTO kv_store (record_key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (record_key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save record %q: %w", key, err)
	}
	return nil
}

// ListByPrefix returns every key starting with prefix, sorted
func (r *KVRepository) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	query := r.db.Rebind(`SELECT record_key FROM kv_store WHERE record_key LIKE ? ESCAPE '\' ORDER BY record_key`)
	if err := r.db.SelectContext(ctx, &keys, query, escapeLike(prefix)+"%"); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return keys, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
