package store

import (
	"database/sql"
	"time"
)

// SetValue upserts a key-value pair within scope. Last write wins.
func (s *Store) SetValue(scope, key, value string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = ?, updated_at = ?`,
		scope, key, value, now, value, now,
	)
	return err
}

// GetValue returns the value for key within scope, or def if the key is missing.
func (s *Store) GetValue(scope, key, def string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE scope = ? AND key = ?`, scope, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return value, nil
}

// KV is a key-value view of the store scoped to one browser.
type KV struct {
	store *Store
	scope string
}

// KV returns the key-value view for scope.
func (s *Store) KV(scope string) *KV {
	return &KV{store: s, scope: scope}
}

// Get returns the value for key, or def if it was never set.
func (kv *KV) Get(key, def string) (string, error) {
	return kv.store.GetValue(kv.scope, key, def)
}

// Set stores value under key.
func (kv *KV) Set(key, value string) error {
	return kv.store.SetValue(kv.scope, key, value)
}
