package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/avatarstudio/avatargw/internal/domain"
)

// ─── Draft Store ────────────────────────────────────────────────────────────

// GetDraft returns the JSON document stored under (kind, key).
func (d *DB) GetDraft(kind, key string) (json.RawMessage, error) {
	var value string
	err := d.db.QueryRow(
		`SELECT value FROM drafts WHERE kind = ? AND key = ?`, kind, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// PutDraft inserts or replaces a draft.
func (d *DB) PutDraft(kind, key string, value json.RawMessage) error {
	_, err := d.db.Exec(
		`INSERT INTO drafts (kind, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		kind, key, string(value), time.Now().Unix(),
	)
	return err
}

// DeleteDraft removes a draft.
func (d *DB) DeleteDraft(kind, key string) error {
	result, err := d.db.Exec(`DELETE FROM drafts WHERE kind = ? AND key = ?`, kind, key)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrDraftNotFound
	}
	return nil
}

// ListDrafts returns the keys stored for a kind, most recently updated first.
func (d *DB) ListDrafts(kind string) ([]string, error) {
	rows, err := d.db.Query(
		`SELECT key FROM drafts WHERE kind = ? ORDER BY updated_at DESC, key`, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
