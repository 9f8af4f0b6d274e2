package store

import "database/sql"

// InsertNotification appends a feed entry. Open message-request entries
// are deduplicated by the partial unique index: a second insert for the
// same (recipient, sender) while one is unread is silently dropped, and
// the returned id is 0.
func (db *DB) InsertNotification(n *Notification) (int64, error) {
	res, err := db.Exec(`
		INSERT OR IGNORE INTO notifications
			(recipient_email, sender_email, type, message, read, friendship_id, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		n.RecipientEmail, n.SenderEmail, n.Type, n.Message, n.FriendshipID, n.CreatedAt)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, nil
	}
	return res.LastInsertId()
}

// GetNotification returns a feed entry by id, or nil.
func (db *DB) GetNotification(id int64) (*Notification, error) {
	row := db.QueryRow(`
		SELECT id, recipient_email, sender_email, type, message, read, friendship_id, created_at
		FROM notifications WHERE id = ?`, id)
	var n Notification
	err := row.Scan(&n.ID, &n.RecipientEmail, &n.SenderEmail, &n.Type, &n.Message,
		&n.Read, &n.FriendshipID, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns the recipient's feed newest first, each
// entry enriched with the sender's current display name and avatar.
func (db *DB) ListNotifications(recipient string) ([]Notification, error) {
	rows, err := db.Query(`
		SELECT n.id, n.recipient_email, n.sender_email, n.type, n.message, n.read,
			n.friendship_id, n.created_at,
			COALESCE(NULLIF(u.full_name, ''), NULLIF(u.first_name, ''), n.sender_email),
			COALESCE(u.avatar_url, '')
		FROM notifications n
		LEFT JOIN users u ON u.email = n.sender_email
		WHERE n.recipient_email = ?
		ORDER BY n.created_at DESC, n.id DESC`, recipient)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var feed []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientEmail, &n.SenderEmail, &n.Type, &n.Message,
			&n.Read, &n.FriendshipID, &n.CreatedAt, &n.SenderName, &n.SenderAvatar); err != nil {
			return nil, err
		}
		feed = append(feed, n)
	}
	return feed, rows.Err()
}

// MarkNotificationRead is idempotent.
func (db *DB) MarkNotificationRead(id int64) error {
	_, err := db.Exec(`UPDATE notifications SET read = 1 WHERE id = ?`, id)
	return err
}

// DeleteNotification removes a feed entry.
func (db *DB) DeleteNotification(id int64) error {
	_, err := db.Exec(`DELETE FROM notifications WHERE id = ?`, id)
	return err
}

// UnreadNotificationCount returns the recipient's unread badge count.
func (db *DB) UnreadNotificationCount(recipient string) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM notifications WHERE recipient_email = ? AND read = 0`,
		recipient).Scan(&n)
	return n, err
}
