package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertPeer inserts or updates a cached peer. Empty fields keep their
// stored value.
func (db *DB) UpsertPeer(p *Peer) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO peers (account_id, uri, username, display_name, avatar, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, uri) DO UPDATE SET
			username = CASE WHEN excluded.username != '' THEN excluded.username ELSE peers.username END,
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE peers.display_name END,
			avatar = CASE WHEN excluded.avatar != '' THEN excluded.avatar ELSE peers.avatar END,
			updated_at = excluded.updated_at`,
		p.AccountID, p.URI, p.Username, p.DisplayName, p.Avatar, now)
	return err
}

// BulkUpsertPeers inserts or updates multiple peers in a single transaction.
func (db *DB) BulkUpsertPeers(peers []Peer) error {
	now := time.Now().UnixMilli()
	return db.Tx(func(tx *sql.Tx) error {
		for _, p := range peers {
			if _, err := tx.Exec(`
				INSERT INTO peers (account_id, uri, username, display_name, avatar, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(account_id, uri) DO UPDATE SET
					username = CASE WHEN excluded.username != '' THEN excluded.username ELSE peers.username END,
					display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE peers.display_name END,
					avatar = CASE WHEN excluded.avatar != '' THEN excluded.avatar ELSE peers.avatar END,
					updated_at = excluded.updated_at`,
				p.AccountID, p.URI, p.Username, p.DisplayName, p.Avatar, now); err != nil {
				return fmt.Errorf("upsert peer %q: %w", p.URI, err)
			}
		}
		return nil
	})
}

// GetPeer returns a cached peer, or nil when unknown.
func (db *DB) GetPeer(accountID, uri string) (*Peer, error) {
	var p Peer
	err := db.QueryRow(`SELECT account_id, uri, username, display_name, avatar FROM peers WHERE account_id = ? AND uri = ?`, accountID, uri).
		Scan(&p.AccountID, &p.URI, &p.Username, &p.DisplayName, &p.Avatar)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPeers returns every cached peer of an account.
func (db *DB) ListPeers(accountID string) ([]Peer, error) {
	rows, err := db.Query(`SELECT account_id, uri, username, display_name, avatar FROM peers WHERE account_id = ? ORDER BY uri`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var peers []Peer
	for rows.Next() {
		var p Peer
		if err := rows.Scan(&p.AccountID, &p.URI, &p.Username, &p.DisplayName, &p.Avatar); err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}
