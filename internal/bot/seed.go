package bot

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cryptobot/core/bootstrap"
	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/internal/storage"
)

// AdminSeeder makes sure the administrator has a quota row before the first update.
func AdminSeeder(adminID int64) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		if adminID == 0 {
			return nil
		}
		if err := storage.New(db).EnsureUser(ctx, adminID); err != nil {
			return err
		}
		logger.Debug(ctx, logger.CompSeed, "admin", slog.Int64("user_id", adminID))
		return nil
	})
}
