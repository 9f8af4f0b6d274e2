package store

import "database/sql"

// SetTyping records or clears the participant's typing heartbeat.
func (db *DB) SetTyping(conversationID int64, email string, typing bool, now int64) error {
	if !typing {
		_, err := db.Exec(`
			DELETE FROM typing_indicators
			WHERE conversation_id = ? AND user_email = ?`,
			conversationID, email)
		return err
	}
	_, err := db.Exec(`
		INSERT INTO typing_indicators (conversation_id, user_email, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (conversation_id, user_email) DO UPDATE SET updated_at = excluded.updated_at`,
		conversationID, email, now)
	return err
}

// TypingUpdatedAt returns the heartbeat time for a participant, or 0
// when no indicator row exists. Staleness is the caller's concern.
func (db *DB) TypingUpdatedAt(conversationID int64, email string) (int64, error) {
	var at int64
	err := db.QueryRow(`
		SELECT updated_at FROM typing_indicators
		WHERE conversation_id = ? AND user_email = ?`,
		conversationID, email).Scan(&at)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return at, nil
}
