// Package store keeps a small sqlite registry of users who have logged in.
// The chat core never reads from it; it only records successful handshakes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUserNotFound is returned by User for unknown usernames.
var ErrUserNotFound = errors.New("user not found")

// User is one row of the registry.
type User struct {
	Username  string
	FirstSeen time.Time
	LastSeen  time.Time
	Logins    int
}

// Store handles SQLite operations for the user registry.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		username   TEXT PRIMARY KEY,
		first_seen DATETIME NOT NULL,
		last_seen  DATETIME NOT NULL,
		logins     INTEGER NOT NULL DEFAULT 0
	);`)
	return err
}

// RecordLogin inserts username or bumps its login count and last-seen time.
func (s *Store) RecordLogin(ctx context.Context, username string, at time.Time) error {
	at = at.UTC()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO users (username, first_seen, last_seen, logins) VALUES (?, ?, ?, 1)
	ON CONFLICT(username) DO UPDATE SET last_seen = excluded.last_seen, logins = users.logins + 1`,
		username, at, at)
	if err != nil {
		return fmt.Errorf("record login for %s: %w", username, err)
	}
	return nil
}

// User looks up a single user.
func (s *Store) User(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, first_seen, last_seen, logins FROM users WHERE username = ?`, username).
		Scan(&u.Username, &u.FirstSeen, &u.LastSeen, &u.Logins)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user %s: %w", username, err)
	}
	return u, nil
}

// Count returns the number of distinct users ever seen.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
