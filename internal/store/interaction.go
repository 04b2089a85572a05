package store

import (
	"database/sql"
	"fmt"
	"time"
)

const interactionColumns = `id, account_id, conversation_id, interaction_id, daemon_id, author, kind, body, status, is_read, swarm, timestamp, record`

// UpsertInteraction inserts or updates an interaction (idempotent on
// account, conversation and interaction id).
func (db *DB) UpsertInteraction(i *Interaction) error {
	blob, err := encodeRecord(i.Record)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO interactions (account_id, conversation_id, interaction_id, daemon_id, author, kind, body, status, is_read, swarm, timestamp, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, conversation_id, interaction_id) DO UPDATE SET
			daemon_id = CASE WHEN excluded.daemon_id != '' THEN excluded.daemon_id ELSE interactions.daemon_id END,
			body = excluded.body,
			status = excluded.status,
			is_read = excluded.is_read,
			record = excluded.record`,
		i.AccountID, i.ConversationID, i.InteractionID, i.DaemonID, i.Author, i.Kind, i.Body, i.Status,
		i.Read, i.Swarm, i.Timestamp, blob, now)
	return err
}

// MarkConversationRead flags every stored interaction of a conversation
// as read.
func (db *DB) MarkConversationRead(accountID, conversationID string) error {
	_, err := db.Exec(`UPDATE interactions SET is_read = 1 WHERE account_id = ? AND conversation_id = ? AND is_read = 0`,
		accountID, conversationID)
	return err
}

// ListInteractions returns interactions of a conversation using keyset
// pagination by timestamp, newest first.
func (db *DB) ListInteractions(accountID, conversationID string, beforeTs int64, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT `+interactionColumns+`
		FROM interactions
		WHERE account_id = ? AND conversation_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, accountID, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	return scanInteractions(rows)
}

// LoadHistory returns the whole stored history of a conversation, oldest
// first.
func (db *DB) LoadHistory(accountID, conversationID string) ([]Interaction, error) {
	rows, err := db.Query(`
		SELECT `+interactionColumns+`
		FROM interactions
		WHERE account_id = ? AND conversation_id = ?
		ORDER BY timestamp ASC, id ASC`, accountID, conversationID)
	if err != nil {
		return nil, err
	}
	return scanInteractions(rows)
}

// ClearConversation deletes the stored history of a conversation and
// returns how many interactions were removed.
func (db *DB) ClearConversation(accountID, conversationID string) (int64, error) {
	res, err := db.Exec(`DELETE FROM interactions WHERE account_id = ? AND conversation_id = ?`, accountID, conversationID)
	if err != nil {
		return 0, fmt.Errorf("clear conversation: %w", err)
	}
	return res.RowsAffected()
}

// InteractionCount returns the total number of stored interactions.
func (db *DB) InteractionCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&count)
	return count, err
}

func scanInteractions(rows *sql.Rows) ([]Interaction, error) {
	defer func() { _ = rows.Close() }()

	var out []Interaction
	for rows.Next() {
		var (
			i    Interaction
			blob []byte
		)
		if err := rows.Scan(&i.ID, &i.AccountID, &i.ConversationID, &i.InteractionID, &i.DaemonID, &i.Author,
			&i.Kind, &i.Body, &i.Status, &i.Read, &i.Swarm, &i.Timestamp, &blob); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(blob)
		if err != nil {
			return nil, fmt.Errorf("interaction %q: %w", i.InteractionID, err)
		}
		i.Record = rec
		out = append(out, i)
	}
	return out, rows.Err()
}
