package store

import "database/sql"

// InsertConversation creates the record for an unordered pair. The
// caller seeds the acceptance flags (requester always accepted; the
// other side pre-accepted only when the pair is already friends).
// Returns ErrDuplicatePair if a conversation already exists.
func (db *DB) InsertConversation(c *Conversation) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO conversations
			(user1_email, user2_email, pair_key, created_at, last_message_at, user1_accepted, user2_accepted)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.User1Email, c.User2Email, PairKey(c.User1Email, c.User2Email),
		c.CreatedAt, c.LastMessageAt, c.User1Accepted, c.User2Accepted)
	if isUniqueViolation(err) {
		return 0, ErrDuplicatePair
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetConversation returns a conversation by id, or nil.
func (db *DB) GetConversation(id int64) (*Conversation, error) {
	return db.scanConversation(db.QueryRow(`
		SELECT id, user1_email, user2_email, created_at, last_message_at,
			user1_last_read_at, user2_last_read_at, user1_accepted, user2_accepted
		FROM conversations WHERE id = ?`, id))
}

// GetConversationByPair looks up the conversation for an unordered pair.
func (db *DB) GetConversationByPair(a, b string) (*Conversation, error) {
	return db.scanConversation(db.QueryRow(`
		SELECT id, user1_email, user2_email, created_at, last_message_at,
			user1_last_read_at, user2_last_read_at, user1_accepted, user2_accepted
		FROM conversations WHERE pair_key = ?`, PairKey(a, b)))
}

func (db *DB) scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.User1Email, &c.User2Email, &c.CreatedAt, &c.LastMessageAt,
		&c.User1LastReadAt, &c.User2LastReadAt, &c.User1Accepted, &c.User2Accepted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// TouchConversation bumps last_message_at.
func (db *DB) TouchConversation(id int64, lastMessageAt int64) error {
	_, err := db.Exec(`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		lastMessageAt, id)
	return err
}

// MarkConversationRead advances the participant's read watermark. The
// MAX keeps the watermark monotonic even if calls arrive out of order.
func (db *DB) MarkConversationRead(id int64, email string, readAt int64) error {
	_, err := db.Exec(`
		UPDATE conversations SET
			user1_last_read_at = CASE WHEN user1_email = ? THEN MAX(user1_last_read_at, ?) ELSE user1_last_read_at END,
			user2_last_read_at = CASE WHEN user2_email = ? THEN MAX(user2_last_read_at, ?) ELSE user2_last_read_at END
		WHERE id = ?`,
		email, readAt, email, readAt, id)
	return err
}

// AcceptConversationBy idempotently records the participant's explicit
// acceptance of a message-request conversation.
func (db *DB) AcceptConversationBy(id int64, email string) error {
	_, err := db.Exec(`
		UPDATE conversations SET
			user1_accepted = CASE WHEN user1_email = ? THEN 1 ELSE user1_accepted END,
			user2_accepted = CASE WHEN user2_email = ? THEN 1 ELSE user2_accepted END
		WHERE id = ?`,
		email, email, id)
	return err
}

// ListConversations returns the caller's conversations newest-activity
// first, capped at limit, each enriched with counterparty display
// fields, a last-message preview and the unread count.
func (db *DB) ListConversations(email string, limit int) ([]ConversationSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT c.id,
			CASE WHEN c.user1_email = ? THEN c.user2_email ELSE c.user1_email END AS other_email,
			COALESCE(NULLIF(u.full_name, ''), NULLIF(u.first_name, ''),
				CASE WHEN c.user1_email = ? THEN c.user2_email ELSE c.user1_email END) AS other_name,
			COALESCE(u.avatar_url, ''),
			COALESCE(u.last_active, 0),
			CASE
				WHEN m.id IS NULL THEN 'No messages yet'
				WHEN m.is_deleted AND m.sender_email = ? THEN 'You unsent a message'
				WHEN m.is_deleted THEN 'Message unsent'
				WHEN m.body = '' AND m.images != '[]' THEN 'Sent an image'
				ELSE m.body
			END AS preview,
			c.last_message_at,
			(SELECT COUNT(*) FROM messages um
				WHERE um.conversation_id = c.id
				AND um.sender_email != ?
				AND um.is_deleted = 0
				AND um.created_at > CASE WHEN c.user1_email = ? THEN c.user1_last_read_at ELSE c.user2_last_read_at END
			) AS unread_count,
			CASE WHEN c.user1_email = ? THEN c.user1_accepted ELSE c.user2_accepted END AS accepted
		FROM conversations c
		LEFT JOIN users u ON u.email = CASE WHEN c.user1_email = ? THEN c.user2_email ELSE c.user1_email END
		LEFT JOIN messages m ON m.id = (
			SELECT id FROM messages WHERE conversation_id = c.id ORDER BY created_at DESC, id DESC LIMIT 1
		)
		WHERE c.user1_email = ? OR c.user2_email = ?
		ORDER BY c.last_message_at DESC
		LIMIT ?`,
		email, email, email, email, email, email, email, email, email, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ID, &s.OtherEmail, &s.OtherName, &s.OtherAvatar,
			&s.OtherLastActive, &s.LastMessage, &s.LastMessageAt, &s.UnreadCount, &s.Accepted); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
