package store

import (
	"database/sql"
	"encoding/json"
)

func encodeImages(images []string) string {
	if len(images) == 0 {
		return "[]"
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeImages(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return nil
	}
	return images
}

// InsertMessage appends a message to a conversation's log.
func (db *DB) InsertMessage(m *Message) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO messages
			(conversation_id, sender_email, body, images, created_at, reply_to_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ConversationID, m.SenderEmail, m.Body, encodeImages(m.Images),
		m.CreatedAt, m.ReplyToID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetMessage returns a message by id, or nil. Soft-deleted rows are
// returned as stored; callers decide how to project them.
func (db *DB) GetMessage(id int64) (*Message, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, sender_email, body, images, created_at,
			is_edited, original_body, is_deleted, is_pinned, reply_to_id
		FROM messages WHERE id = ?`, id)
	var m Message
	var images string
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderEmail, &m.Body, &images,
		&m.CreatedAt, &m.IsEdited, &m.OriginalBody, &m.IsDeleted, &m.IsPinned, &m.ReplyToID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Images = decodeImages(images)
	return &m, nil
}

// EditMessage replaces the body, snapshotting the original text on the
// first edit only.
func (db *DB) EditMessage(id int64, body string) error {
	_, err := db.Exec(`
		UPDATE messages SET
			original_body = CASE WHEN is_edited THEN original_body ELSE body END,
			body = ?,
			is_edited = 1
		WHERE id = ?`, body, id)
	return err
}

// UnsendMessage soft-deletes a message. The row stays so replies keep a
// stable target and moderation can inspect it.
func (db *DB) UnsendMessage(id int64) error {
	_, err := db.Exec(`UPDATE messages SET is_deleted = 1 WHERE id = ?`, id)
	return err
}

// TogglePin flips the pinned flag and reports the new value.
func (db *DB) TogglePin(id int64) (bool, error) {
	_, err := db.Exec(`UPDATE messages SET is_pinned = NOT is_pinned WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	var pinned bool
	err = db.QueryRow(`SELECT is_pinned FROM messages WHERE id = ?`, id).Scan(&pinned)
	return pinned, err
}

// ToggleReaction adds the (user, emoji) pair if absent, removes it if
// present. Returns true when the reaction is now set.
func (db *DB) ToggleReaction(messageID int64, email, emoji string, now int64) (bool, error) {
	res, err := db.Exec(`
		DELETE FROM message_reactions
		WHERE message_id = ? AND user_email = ? AND emoji = ?`,
		messageID, email, emoji)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = db.Exec(`
		INSERT INTO message_reactions (message_id, user_email, emoji, created_at)
		VALUES (?, ?, ?, ?)`,
		messageID, email, emoji, now)
	return true, err
}

// ListMessages returns up to limit messages ending at the conversation
// tail, oldest first, each enriched with its reply preview, reactions
// and read state. before, when nonzero, pages further back by message
// id. Soft-deleted messages stay in sequence with blanked content.
func (db *DB) ListMessages(conversationID int64, before int64, limit int, otherLastReadAt int64) ([]MessageView, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, conversation_id, sender_email, body, images, created_at,
			is_edited, original_body, is_deleted, is_pinned, reply_to_id
		FROM messages
		WHERE conversation_id = ?`
	args := []any{conversationID}
	if before > 0 {
		query += ` AND id < ?`
		args = append(args, before)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var views []MessageView
	for rows.Next() {
		var v MessageView
		var images string
		if err := rows.Scan(&v.ID, &v.ConversationID, &v.SenderEmail, &v.Body, &images,
			&v.CreatedAt, &v.IsEdited, &v.OriginalBody, &v.IsDeleted, &v.IsPinned, &v.ReplyToID); err != nil {
			return nil, err
		}
		v.Images = decodeImages(images)
		if v.IsDeleted {
			v.Body = ""
			v.Images = nil
			v.OriginalBody = ""
		}
		v.ReadByOther = v.CreatedAt <= otherLastReadAt
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}

	for i := range views {
		if views[i].ReplyToID != 0 {
			snap, err := db.replySnapshot(views[i].ReplyToID)
			if err != nil {
				return nil, err
			}
			views[i].ReplyTo = snap
		}
		reactions, err := db.listReactions(views[i].ID)
		if err != nil {
			return nil, err
		}
		views[i].Reactions = reactions
	}
	return views, nil
}

func (db *DB) replySnapshot(id int64) (*ReplySnapshot, error) {
	row := db.QueryRow(`
		SELECT id, body, images, sender_email FROM messages
		WHERE id = ? AND is_deleted = 0`, id)
	var s ReplySnapshot
	var images string
	err := row.Scan(&s.ID, &s.Body, &images, &s.SenderEmail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Images = decodeImages(images)
	return &s, nil
}

func (db *DB) listReactions(messageID int64) ([]Reaction, error) {
	rows, err := db.Query(`
		SELECT user_email, emoji FROM message_reactions
		WHERE message_id = ? ORDER BY created_at, rowid`, messageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var reactions []Reaction
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.UserEmail, &r.Emoji); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// ListPinnedMessages returns the conversation's pinned, non-deleted
// messages newest first.
func (db *DB) ListPinnedMessages(conversationID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_email, body, images, created_at,
			is_edited, original_body, is_deleted, is_pinned, reply_to_id
		FROM messages
		WHERE conversation_id = ? AND is_pinned = 1 AND is_deleted = 0
		ORDER BY created_at DESC, id DESC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var messages []Message
	for rows.Next() {
		var m Message
		var images string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderEmail, &m.Body, &images,
			&m.CreatedAt, &m.IsEdited, &m.OriginalBody, &m.IsDeleted, &m.IsPinned, &m.ReplyToID); err != nil {
			return nil, err
		}
		m.Images = decodeImages(images)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
