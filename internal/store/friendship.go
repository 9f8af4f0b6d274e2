package store

import (
	"database/sql"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrDuplicatePair is returned when an insert collides with the unique
// pair key of friendships or conversations.
var ErrDuplicatePair = errors.New("pair already exists")

// InsertFriendship creates a pending edge; user1 is the requester.
// Returns ErrDuplicatePair when any edge already exists for the pair.
func (db *DB) InsertFriendship(requester, recipient string, createdAt int64) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO friendships (user1_email, user2_email, pair_key, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)`,
		requester, recipient, PairKey(requester, recipient), createdAt)
	if isUniqueViolation(err) {
		return 0, ErrDuplicatePair
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetFriendship returns an edge by id, or nil.
func (db *DB) GetFriendship(id int64) (*Friendship, error) {
	var f Friendship
	err := db.QueryRow(`
		SELECT id, user1_email, user2_email, status, created_at, accepted_at
		FROM friendships WHERE id = ?`, id).
		Scan(&f.ID, &f.User1Email, &f.User2Email, &f.Status, &f.CreatedAt, &f.AcceptedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFriendshipBetween returns the edge for an unordered pair in either
// status, or nil.
func (db *DB) GetFriendshipBetween(a, b string) (*Friendship, error) {
	var f Friendship
	err := db.QueryRow(`
		SELECT id, user1_email, user2_email, status, created_at, accepted_at
		FROM friendships WHERE pair_key = ?`, PairKey(a, b)).
		Scan(&f.ID, &f.User1Email, &f.User2Email, &f.Status, &f.CreatedAt, &f.AcceptedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// AreFriends reports whether an accepted edge exists between the pair.
func (db *DB) AreFriends(a, b string) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM friendships WHERE pair_key = ? AND status = 'accepted'`,
		PairKey(a, b)).Scan(&n)
	return n > 0, err
}

// AcceptFriendship transitions a pending edge to accepted.
func (db *DB) AcceptFriendship(id int64, acceptedAt int64) error {
	_, err := db.Exec(`
		UPDATE friendships SET status = 'accepted', accepted_at = ? WHERE id = ?`,
		acceptedAt, id)
	return err
}

// DeleteFriendship removes an edge outright; a fresh request can be
// sent immediately afterwards.
func (db *DB) DeleteFriendship(id int64) error {
	_, err := db.Exec(`DELETE FROM friendships WHERE id = ?`, id)
	return err
}

// ListFriends returns the accepted counterparties of email, joined with
// their directory profiles.
func (db *DB) ListFriends(email string) ([]FriendEntry, error) {
	rows, err := db.Query(`
		SELECT f.id,
			CASE WHEN f.user1_email = ? THEN f.user2_email ELSE f.user1_email END AS other_email,
			COALESCE(u.full_name, ''), COALESCE(u.first_name, ''), COALESCE(u.avatar_url, ''),
			COALESCE(u.last_active, 0), f.created_at
		FROM friendships f
		LEFT JOIN users u ON u.email = CASE WHEN f.user1_email = ? THEN f.user2_email ELSE f.user1_email END
		WHERE (f.user1_email = ? OR f.user2_email = ?) AND f.status = 'accepted'
		ORDER BY u.full_name, other_email`,
		email, email, email, email)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanFriendEntries(rows)
}

// ListPendingRequests returns incoming pending edges for the recipient.
func (db *DB) ListPendingRequests(recipient string) ([]FriendEntry, error) {
	rows, err := db.Query(`
		SELECT f.id, f.user1_email,
			COALESCE(u.full_name, ''), COALESCE(u.first_name, ''), COALESCE(u.avatar_url, ''),
			COALESCE(u.last_active, 0), f.created_at
		FROM friendships f
		LEFT JOIN users u ON u.email = f.user1_email
		WHERE f.user2_email = ? AND f.status = 'pending'
		ORDER BY f.created_at DESC`, recipient)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanFriendEntries(rows)
}

// ListSentRequests returns outgoing pending edges for the requester.
func (db *DB) ListSentRequests(requester string) ([]FriendEntry, error) {
	rows, err := db.Query(`
		SELECT f.id, f.user2_email,
			COALESCE(u.full_name, ''), COALESCE(u.first_name, ''), COALESCE(u.avatar_url, ''),
			COALESCE(u.last_active, 0), f.created_at
		FROM friendships f
		LEFT JOIN users u ON u.email = f.user2_email
		WHERE f.user1_email = ? AND f.status = 'pending'
		ORDER BY f.created_at DESC`, requester)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanFriendEntries(rows)
}

func scanFriendEntries(rows *sql.Rows) ([]FriendEntry, error) {
	var entries []FriendEntry
	for rows.Next() {
		var e FriendEntry
		if err := rows.Scan(&e.FriendshipID, &e.Email, &e.FullName, &e.FirstName,
			&e.AvatarURL, &e.LastActive, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}
