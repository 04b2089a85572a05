package store

import (
	"database/sql"
	"strings"
	"time"
)

// SetState stores a checkpoint value.
func (db *DB) SetState(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetState returns a checkpoint value and whether it exists.
func (db *DB) GetState(key string) (string, bool, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// StatesWithPrefix returns every checkpoint whose key starts with prefix.
func (db *DB) StatesWithPrefix(prefix string) (map[string]string, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := db.Query(`SELECT key, value FROM sync_state WHERE key LIKE ? ESCAPE '\'`, escaped+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// DeleteState removes a checkpoint.
func (db *DB) DeleteState(key string) error {
	_, err := db.Exec(`DELETE FROM sync_state WHERE key = ?`, key)
	return err
}

// LastReadKey names the checkpoint holding a conversation's read pointer.
func LastReadKey(accountID, conversationID string) string {
	return "lastread/" + accountID + "/" + conversationID
}
