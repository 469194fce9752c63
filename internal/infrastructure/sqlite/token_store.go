package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// TokenStore keeps the client's bearer token in a single-row SQLite table so a
// session survives restarts of the CLI. Local preferences live in the same
// database and outlive logout.
type TokenStore struct {
	db        *sql.DB
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

// NewTokenStore opens (creating if needed) the database at path.
func NewTokenStore(path string) (*TokenStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := initializeDB(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	return &TokenStore{db: db, writeLock: new(sync.Mutex)}, nil
}

func initializeDB(db *sql.DB) error {
	for _, stmt := range []string{`
		CREATE TABLE IF NOT EXISTS auth_token (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			token      TEXT    NOT NULL,
			updated_at TEXT    NOT NULL
		)`, `
		CREATE TABLE IF NOT EXISTS preference (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the stored token, or "" when there is none.
func (s *TokenStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM auth_token WHERE id = 1`).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// Save replaces the stored token.
func (s *TokenStore) Save(ctx context.Context, token string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_token (id, token, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, token, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Delete forgets the stored token. Deleting when nothing is stored is not an error.
func (s *TokenStore) Delete(ctx context.Context) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_token WHERE id = 1`); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (s *TokenStore) Close() error {
	return s.db.Close()
}
