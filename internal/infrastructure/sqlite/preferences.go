package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const themeKey = "theme"

// LoadTheme returns the saved theme name, or "" when none was saved.
func (s *TokenStore) LoadTheme(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preference WHERE key = ?`, themeKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load theme: %w", err)
	}
	return v, nil
}

func (s *TokenStore) SaveTheme(ctx context.Context, theme string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preference (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, themeKey, theme, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}
