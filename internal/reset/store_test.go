package reset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/cryptobot/core/database"
	"github.com/m3rciful/cryptobot/internal/storage"
	"github.com/m3rciful/cryptobot/migrations"
)

// cancelAfterReset stops the loop once the first reset has gone through.
type cancelAfterReset struct {
	*storage.Store
	cancel context.CancelFunc
}

func (c cancelAfterReset) ResetAll(ctx context.Context) (int64, error) {
	rows, err := c.Store.ResetAll(ctx)
	c.cancel()
	return rows, err
}

func sqliteStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()
	cfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"}
	require.NoError(t, cfg.Normalize())
	db, err := coredatabase.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, coredatabase.RunMigrations(ctx, cfg, db, migrations.FS))
	return storage.New(db)
}

func TestRunAcrossMidnightAgainstStore(t *testing.T) {
	store := sqliteStore(t)
	ctx := context.Background()
	checkin := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	predicted := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	for _, id := range []int64{1, 2} {
		require.NoError(t, store.EnsureUser(ctx, id))
		_, err := store.Checkin(ctx, id, checkin)
		require.NoError(t, err)
		_, err = store.Increment(ctx, id, predicted)
		require.NoError(t, err)
		require.NoError(t, store.SetCount(ctx, id, 7))
	}
	require.NoError(t, store.EnsureUser(ctx, 3))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	clock := &manualClock{now: time.Date(2026, 10, 17, 23, 59, 59, 0, time.UTC)}
	s, err := New(Options{Store: cancelAfterReset{Store: store, cancel: cancel}, Now: clock.Now, After: clock.After})
	require.NoError(t, err)

	require.NoError(t, s.Run(runCtx))
	assert.Equal(t, time.Second, clock.Waits()[0])

	for _, id := range []int64{1, 2} {
		q, err := store.GetQuota(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, q.Count, "user %d", id)
		assert.Equal(t, checkin, q.CheckinDate, "user %d", id)
		assert.Equal(t, predicted, q.LastPredictionDate, "user %d", id)
	}
	q, err := store.GetQuota(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, q.Count)
	assert.True(t, q.CheckinDate.IsZero())
}

func TestRunOnceAgainstStore(t *testing.T) {
	store := sqliteStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureUser(ctx, 5))
	require.NoError(t, store.SetCount(ctx, 5, 7))

	s, err := New(Options{Store: store})
	require.NoError(t, err)
	assert.True(t, s.RunOnce(ctx))

	q, err := store.GetQuota(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, q.Count)
}
