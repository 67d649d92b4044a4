package store

import (
	"database/sql"
	"time"
)

// APIKey stores a bcrypt hash of the issued key; the short prefix is kept in
// clear so validation can look up one row instead of scanning the table.
type APIKey struct {
	ID        int64
	Prefix    string
	KeyHash   string
	Label     string
	CreatedAt time.Time
}

func (db *DB) CreateAPIKey(prefix, keyHash, label string) error {
	_, err := db.Exec(db.Q(`INSERT INTO api_keys (prefix, key_hash, label) VALUES (?, ?, ?)`),
		prefix, keyHash, label)
	return err
}

func (db *DB) GetAPIKeyByPrefix(prefix string) (*APIKey, error) {
	var k APIKey
	var createdAt any
	err := db.QueryRow(db.Q(`SELECT id, prefix, key_hash, label, created_at FROM api_keys WHERE prefix=?`), prefix).
		Scan(&k.ID, &k.Prefix, &k.KeyHash, &k.Label, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	k.CreatedAt = parseTime(createdAt)
	return &k, nil
}

func (db *DB) CountAPIKeys() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM api_keys`).Scan(&count)
	return count, err
}

func (db *DB) DeleteAPIKey(prefix string) error {
	_, err := db.Exec(db.Q(`DELETE FROM api_keys WHERE prefix=?`), prefix)
	return err
}
