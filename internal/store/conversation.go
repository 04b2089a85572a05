package store

// ListConversations returns the conversations of an account that have
// stored history, most recent first.
func (db *DB) ListConversations(accountID string) ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT i.account_id, i.conversation_id, MAX(i.swarm), COUNT(*),
			SUM(CASE WHEN i.is_read = 0 AND i.author != '' THEN 1 ELSE 0 END),
			MAX(i.timestamp),
			COALESCE((
				SELECT l.body FROM interactions l
				WHERE l.account_id = i.account_id AND l.conversation_id = i.conversation_id
				ORDER BY l.timestamp DESC, l.id DESC LIMIT 1
			), '')
		FROM interactions i
		WHERE i.account_id = ?
		GROUP BY i.account_id, i.conversation_id
		ORDER BY MAX(i.timestamp) DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.AccountID, &c.ConversationID, &c.Swarm, &c.Count, &c.Unread, &c.LastAt, &c.LastPreview); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// ConversationCount returns the number of conversations with stored
// history.
func (db *DB) ConversationCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(DISTINCT account_id || '/' || conversation_id) FROM interactions`).Scan(&count)
	return count, err
}
