package storage

import (
	"context"
	"fmt"
)

// AddPortfolioEntry adds ref to the user's portfolio. It reports false when
// the entry was already present.
func (s *Store) AddPortfolioEntry(ctx context.Context, userID int64, ref string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO portfolio (user_id, ref) VALUES (?, ?)
		 ON CONFLICT (user_id, ref) DO NOTHING`), userID, ref)
	if err != nil {
		return false, fmt.Errorf("add portfolio entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add portfolio entry: %w", err)
	}
	return n == 1, nil
}

// RemovePortfolioEntry deletes ref from the user's portfolio. Removing a
// missing entry is not an error.
func (s *Store) RemovePortfolioEntry(ctx context.Context, userID int64, ref string) error {
	if _, err := s.db.ExecContext(ctx, s.q(
		`DELETE FROM portfolio WHERE user_id = ? AND ref = ?`), userID, ref); err != nil {
		return fmt.Errorf("remove portfolio entry: %w", err)
	}
	return nil
}

// ListPortfolio returns the user's refs in insertion order.
func (s *Store) ListPortfolio(ctx context.Context, userID int64) ([]string, error) {
	var refs []string
	if err := s.db.SelectContext(ctx, &refs, s.q(
		`SELECT ref FROM portfolio WHERE user_id = ? ORDER BY created_at, ref`), userID); err != nil {
		return nil, fmt.Errorf("list portfolio: %w", err)
	}
	return refs, nil
}
