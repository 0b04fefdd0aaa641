package storage

import (
	"context"
	"fmt"
	"time"
)

// AddSuggestion stores free-form feedback from a user.
func (s *Store) AddSuggestion(ctx context.Context, userID int64, body string, day time.Time) error {
	if _, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO suggestions (user_id, body, created_on) VALUES (?, ?, ?)`),
		userID, body, formatDate(day)); err != nil {
		return fmt.Errorf("add suggestion: %w", err)
	}
	return nil
}

// CountSuggestions returns the number of suggestions left by userID.
func (s *Store) CountSuggestions(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(
		`SELECT COUNT(*) FROM suggestions WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("count suggestions: %w", err)
	}
	return n, nil
}
