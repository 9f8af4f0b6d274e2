package store

import "database/sql"

// InsertSignal stores a call-signaling envelope for later pickup by the
// addressee.
func (db *DB) InsertSignal(s *CallSignal) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO call_signals (conversation_id, from_email, to_email, type, signal, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ConversationID, s.FromEmail, s.ToEmail, s.Type, s.Signal, s.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSignal returns an envelope by id, or nil.
func (db *DB) GetSignal(id int64) (*CallSignal, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, from_email, to_email, type, signal, created_at
		FROM call_signals WHERE id = ?`, id)
	var s CallSignal
	err := row.Scan(&s.ID, &s.ConversationID, &s.FromEmail, &s.ToEmail,
		&s.Type, &s.Signal, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListPendingSignals returns the newest undelivered envelopes addressed
// to the recipient in the conversation, newest first, capped at 50.
func (db *DB) ListPendingSignals(conversationID int64, toEmail string) ([]CallSignal, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, from_email, to_email, type, signal, created_at
		FROM call_signals
		WHERE conversation_id = ? AND to_email = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 50`, conversationID, toEmail)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var signals []CallSignal
	for rows.Next() {
		var s CallSignal
		if err := rows.Scan(&s.ID, &s.ConversationID, &s.FromEmail, &s.ToEmail,
			&s.Type, &s.Signal, &s.CreatedAt); err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// DeleteSignal removes a consumed envelope.
func (db *DB) DeleteSignal(id int64) error {
	_, err := db.Exec(`DELETE FROM call_signals WHERE id = ?`, id)
	return err
}

// DeleteConversationSignals clears every envelope addressed to the
// recipient in the conversation. Used on call teardown; each side
// purges its own inbox, so an in-flight call-ended to the other side
// survives until they consume it.
func (db *DB) DeleteConversationSignals(conversationID int64, toEmail string) (int64, error) {
	res, err := db.Exec(`DELETE FROM call_signals WHERE conversation_id = ? AND to_email = ?`,
		conversationID, toEmail)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
