package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserOverrides returns the stored override document for the user, or nil
// when the user has never customized their configuration.
func (s *Store) UserOverrides(ctx context.Context, userID int64) (*OverrideRecord, error) {
	var (
		body       string
		updatedRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT body, updated_at FROM user_overrides WHERE user_id = ?`, userID,
	).Scan(&body, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	return &OverrideRecord{UserID: userID, Body: []byte(body), UpdatedAt: parseTimeOrZero(updatedRaw)}, nil
}

// PutUserOverrides replaces the override document for the user.
func (s *Store) PutUserOverrides(ctx context.Context, userID int64, body []byte) error {
	if len(body) == 0 {
		return errors.New("override body is empty")
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO user_overrides (user_id, body, updated_at) VALUES (?, ?, ?)
         ON CONFLICT (user_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		userID, string(body), nowString(),
	); err != nil {
		return fmt.Errorf("put overrides: %w", err)
	}
	return nil
}
