package store

// SearchInteractions performs a full-text search on interaction bodies,
// optionally restricted to one account or conversation.
func (db *DB) SearchInteractions(query, accountID, conversationID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT i.id, i.account_id, i.conversation_id, i.interaction_id, i.daemon_id, i.author,
		       i.kind, i.body, i.status, i.is_read, i.swarm, i.timestamp,
		       snippet(interactions_fts, '<<', '>>', '...', -1, 32)
		FROM interactions_fts f
		JOIN interactions i ON i.id = f.docid
		WHERE interactions_fts MATCH ?`

	args := []any{query}
	if accountID != "" {
		q += " AND i.account_id = ?"
		args = append(args, accountID)
	}
	if conversationID != "" {
		q += " AND i.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY i.timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Interaction.ID, &r.Interaction.AccountID, &r.Interaction.ConversationID,
			&r.Interaction.InteractionID, &r.Interaction.DaemonID, &r.Interaction.Author,
			&r.Interaction.Kind, &r.Interaction.Body, &r.Interaction.Status,
			&r.Interaction.Read, &r.Interaction.Swarm, &r.Interaction.Timestamp, &r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
