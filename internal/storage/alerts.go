package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/internal/model"
)

const alertColumns = `id, user_id, ref, price, active`

// AddAlert stores an active alert and returns its id.
func (s *Store) AddAlert(ctx context.Context, userID int64, ref string, price decimal.Decimal) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(
		`INSERT INTO price_alerts (user_id, ref, price, active) VALUES (?, ?, ?, ?)
		 RETURNING id`), userID, ref, price, true).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add alert: %w", err)
	}
	logger.Debug(ctx, logger.CompAlerts, "add", slog.Int64("alert_id", id), slog.String("ref", ref))
	return id, nil
}

// ListActiveAlerts returns every active alert ordered by id.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]model.PriceAlert, error) {
	var out []model.PriceAlert
	err := s.db.SelectContext(ctx, &out, s.q(
		`SELECT `+alertColumns+` FROM price_alerts WHERE active = ? ORDER BY id`), true)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return out, nil
}

// ListUserAlerts returns the user's active alerts ordered by id.
func (s *Store) ListUserAlerts(ctx context.Context, userID int64) ([]model.PriceAlert, error) {
	var out []model.PriceAlert
	err := s.db.SelectContext(ctx, &out, s.q(
		`SELECT `+alertColumns+` FROM price_alerts WHERE user_id = ? AND active = ? ORDER BY id`),
		userID, true)
	if err != nil {
		return nil, fmt.Errorf("list user alerts: %w", err)
	}
	return out, nil
}

// GetAlert loads an alert whether or not it is active.
func (s *Store) GetAlert(ctx context.Context, id int64) (model.PriceAlert, error) {
	var out []model.PriceAlert
	if err := s.db.SelectContext(ctx, &out, s.q(
		`SELECT `+alertColumns+` FROM price_alerts WHERE id = ?`), id); err != nil {
		return model.PriceAlert{}, fmt.Errorf("get alert: %w", err)
	}
	if len(out) == 0 {
		return model.PriceAlert{}, ErrNotFound
	}
	return out[0], nil
}

// DeactivateAlert soft deletes an alert by id. It reports whether an active alert was changed.
func (s *Store) DeactivateAlert(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE price_alerts SET active = ? WHERE id = ? AND active = ?`), false, id, true)
	if err != nil {
		return false, fmt.Errorf("deactivate alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate alert: %w", err)
	}
	return n == 1, nil
}

// DeactivateUserAlert soft deletes an alert only when userID owns it.
func (s *Store) DeactivateUserAlert(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE price_alerts SET active = ? WHERE id = ? AND user_id = ? AND active = ?`),
		false, id, userID, true)
	if err != nil {
		return false, fmt.Errorf("deactivate user alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate user alert: %w", err)
	}
	return n == 1, nil
}
