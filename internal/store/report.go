package store

// InsertReport files a moderation report against a message.
func (db *DB) InsertReport(messageID int64, reporterEmail, reason string, now int64) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO message_reports (message_id, reporter_email, reason, created_at)
		VALUES (?, ?, ?, ?)`,
		messageID, reporterEmail, reason, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
