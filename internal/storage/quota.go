package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/internal/model"
)

// EnsureUser creates the user row on first contact. Repeated calls are no-ops.
func (s *Store) EnsureUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO users (telegram_id, daily_predictions) VALUES (?, 0)
		 ON CONFLICT (telegram_id) DO NOTHING`), userID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// GetQuota returns the user's prediction bookkeeping.
func (s *Store) GetQuota(ctx context.Context, userID int64) (model.Quota, error) {
	var (
		count       int
		lastDate    Date
		checkinDate Date
	)
	err := s.db.QueryRowxContext(ctx, s.q(
		`SELECT daily_predictions, last_prediction_date, checkin_date
		 FROM users WHERE telegram_id = ?`), userID).
		Scan(&count, &lastDate, &checkinDate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quota{}, ErrNotFound
	}
	if err != nil {
		return model.Quota{}, fmt.Errorf("get quota: %w", err)
	}
	q := model.Quota{UserID: userID, Count: count}
	if lastDate.Valid {
		q.LastPredictionDate = lastDate.Time
	}
	if checkinDate.Valid {
		q.CheckinDate = checkinDate.Time
	}
	return q, nil
}

// Checkin records today's check-in and grants one extra prediction in a single
// statement. It reports false when the user already checked in on that day.
func (s *Store) Checkin(ctx context.Context, userID int64, today time.Time) (bool, error) {
	day := formatDate(today)
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE users
		 SET checkin_date = ?, daily_predictions = daily_predictions + 1
		 WHERE telegram_id = ? AND (checkin_date IS NULL OR checkin_date <> ?)`),
		day, userID, day)
	if err != nil {
		return false, fmt.Errorf("checkin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checkin: %w", err)
	}
	return n == 1, nil
}

// Increment consumes one prediction and returns the new count.
func (s *Store) Increment(ctx context.Context, userID int64, today time.Time) (int, error) {
	var count int
	err := s.db.QueryRowxContext(ctx, s.q(
		`UPDATE users
		 SET daily_predictions = daily_predictions + 1, last_prediction_date = ?
		 WHERE telegram_id = ?
		 RETURNING daily_predictions`), formatDate(today), userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment predictions: %w", err)
	}
	return count, nil
}

// SetCount overwrites the user's prediction count.
func (s *Store) SetCount(ctx context.Context, userID int64, n int) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE users SET daily_predictions = ? WHERE telegram_id = ?`), n, userID)
	if err != nil {
		return fmt.Errorf("set predictions: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetAll zeroes every user's prediction count and returns the rows changed.
func (s *Store) ResetAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET daily_predictions = 0 WHERE daily_predictions <> 0`)
	if err != nil {
		return 0, fmt.Errorf("reset predictions: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset predictions: %w", err)
	}
	logger.Info(ctx, logger.CompQuota, "reset_all", slog.Int64("rows", rows))
	return rows, nil
}
