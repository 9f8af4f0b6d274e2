package store

import (
	"database/sql"
	"strings"
	"time"
)

// UpsertUser inserts or refreshes a directory profile (idempotent on
// email). lastActive is the caller-supplied activity timestamp.
func (db *DB) UpsertUser(u *User, lastActive int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO users (email, full_name, first_name, avatar_url, last_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			full_name = CASE WHEN excluded.full_name != '' THEN excluded.full_name ELSE users.full_name END,
			first_name = CASE WHEN excluded.first_name != '' THEN excluded.first_name ELSE users.first_name END,
			avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE users.avatar_url END,
			last_active = excluded.last_active,
			updated_at = excluded.updated_at`,
		u.Email, u.FullName, u.FirstName, u.AvatarURL, lastActive, now, now)
	return err
}

// SetLastActive overwrites a user's activity timestamp. Writing 0 marks
// the user explicitly offline.
func (db *DB) SetLastActive(email string, lastActive int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE users SET last_active = ?, updated_at = ? WHERE email = ?`,
		lastActive, now, email)
	return err
}

// GetUser returns a profile by email, or nil if unknown.
func (db *DB) GetUser(email string) (*User, error) {
	var u User
	err := db.QueryRow(`
		SELECT email, full_name, first_name, avatar_url, last_active
		FROM users WHERE email = ?`, email).
		Scan(&u.Email, &u.FullName, &u.FirstName, &u.AvatarURL, &u.LastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every directory profile.
func (db *DB) ListUsers() ([]User, error) {
	rows, err := db.Query(`
		SELECT email, full_name, first_name, avatar_url, last_active
		FROM users ORDER BY full_name, email`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanUsers(rows)
}

// SearchUsers does a case-insensitive substring match over name and
// email fields, excluding the caller. An empty term lists the directory.
func (db *DB) SearchUsers(term, excludeEmail string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(term) + "%"
	rows, err := db.Query(`
		SELECT email, full_name, first_name, avatar_url, last_active
		FROM users
		WHERE email != ?
		AND (lower(full_name) LIKE ? OR lower(first_name) LIKE ? OR lower(email) LIKE ?)
		ORDER BY full_name, email
		LIMIT ?`, excludeEmail, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Email, &u.FullName, &u.FirstName, &u.AvatarURL, &u.LastActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
