package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	coredatabase "github.com/m3rciful/cryptobot/core/database"
	"github.com/m3rciful/cryptobot/migrations"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	cfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"}
	s.Require().NoError(cfg.Normalize())

	db, err := coredatabase.Connect(s.ctx, cfg)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.Require().NoError(coredatabase.RunMigrations(s.ctx, cfg, db, migrations.FS))

	s.store = New(db)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TestEnsureUserIsIdempotent() {
	s.Require().NoError(s.store.EnsureUser(s.ctx, 7))
	_, err := s.store.Increment(s.ctx, 7, day(2026, 10, 17))
	s.Require().NoError(err)
	s.Require().NoError(s.store.EnsureUser(s.ctx, 7))

	q, err := s.store.GetQuota(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(1, q.Count)
	s.True(q.CheckinDate.IsZero())
	s.Equal(day(2026, 10, 17), q.LastPredictionDate)
}

func (s *StoreSuite) TestGetQuotaUnknownUser() {
	_, err := s.store.GetQuota(s.ctx, 404)
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.Increment(s.ctx, 404, day(2026, 10, 17))
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.store.SetCount(s.ctx, 404, 3), ErrNotFound)
}

func (s *StoreSuite) TestCheckinOncePerDay() {
	s.Require().NoError(s.store.EnsureUser(s.ctx, 1))
	today := day(2026, 10, 17)

	ok, err := s.store.Checkin(s.ctx, 1, today)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Checkin(s.ctx, 1, today)
	s.Require().NoError(err)
	s.False(ok)

	q, err := s.store.GetQuota(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, q.Count)
	s.True(q.CheckedInOn(today))

	ok, err = s.store.Checkin(s.ctx, 1, today.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.True(ok)
	q, err = s.store.GetQuota(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(2, q.Count)
}

func (s *StoreSuite) TestIncrementReturnsNewCount() {
	s.Require().NoError(s.store.EnsureUser(s.ctx, 1))
	for want := 1; want <= 3; want++ {
		n, err := s.store.Increment(s.ctx, 1, day(2026, 10, 17))
		s.Require().NoError(err)
		s.Equal(want, n)
	}
}

func (s *StoreSuite) TestResetAllZeroesEveryone() {
	for _, id := range []int64{1, 2, 3} {
		s.Require().NoError(s.store.EnsureUser(s.ctx, id))
	}
	s.Require().NoError(s.store.SetCount(s.ctx, 1, 7))
	s.Require().NoError(s.store.SetCount(s.ctx, 2, 7))

	rows, err := s.store.ResetAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), rows)

	for _, id := range []int64{1, 2, 3} {
		q, err := s.store.GetQuota(s.ctx, id)
		s.Require().NoError(err)
		s.Zero(q.Count, "user %d", id)
	}

	rows, err = s.store.ResetAll(s.ctx)
	s.Require().NoError(err)
	s.Zero(rows)
}

func (s *StoreSuite) TestResetAllKeepsDates() {
	for _, id := range []int64{1, 2} {
		s.Require().NoError(s.store.EnsureUser(s.ctx, id))
		_, err := s.store.Checkin(s.ctx, id, day(2026, 10, 17))
		s.Require().NoError(err)
		_, err = s.store.Increment(s.ctx, id, day(2026, 10, 16))
		s.Require().NoError(err)
		s.Require().NoError(s.store.SetCount(s.ctx, id, 7))
	}

	rows, err := s.store.ResetAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), rows)

	for _, id := range []int64{1, 2} {
		q, err := s.store.GetQuota(s.ctx, id)
		s.Require().NoError(err)
		s.Zero(q.Count, "user %d", id)
		s.Equal(day(2026, 10, 17), q.CheckinDate, "user %d", id)
		s.Equal(day(2026, 10, 16), q.LastPredictionDate, "user %d", id)
	}
}

func (s *StoreSuite) TestAlertLifecycle() {
	s.Require().NoError(s.store.EnsureUser(s.ctx, 1))
	s.Require().NoError(s.store.EnsureUser(s.ctx, 2))

	price := decimal.RequireFromString("0.000123")
	id, err := s.store.AddAlert(s.ctx, 1, "0xabc", price)
	s.Require().NoError(err)
	other, err := s.store.AddAlert(s.ctx, 2, "0xdef", decimal.NewFromInt(5))
	s.Require().NoError(err)

	mine, err := s.store.ListUserAlerts(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(id, mine[0].ID)
	s.True(mine[0].Active)
	s.True(price.Equal(mine[0].Price), "price %s", mine[0].Price)

	// another user's alert is left alone
	ok, err := s.store.DeactivateUserAlert(s.ctx, 1, other)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.store.DeactivateUserAlert(s.ctx, 1, id)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.DeactivateUserAlert(s.ctx, 1, id)
	s.Require().NoError(err)
	s.False(ok)

	removed, err := s.store.GetAlert(s.ctx, id)
	s.Require().NoError(err)
	s.False(removed.Active)

	active, err := s.store.ListActiveAlerts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(other, active[0].ID)

	ok, err = s.store.DeactivateAlert(s.ctx, other)
	s.Require().NoError(err)
	s.True(ok)
	active, err = s.store.ListActiveAlerts(s.ctx)
	s.Require().NoError(err)
	s.Empty(active)

	_, err = s.store.GetAlert(s.ctx, 999)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestPortfolio() {
	s.Require().NoError(s.store.EnsureUser(s.ctx, 1))

	added, err := s.store.AddPortfolioEntry(s.ctx, 1, "0xaaa")
	s.Require().NoError(err)
	s.True(added)
	added, err = s.store.AddPortfolioEntry(s.ctx, 1, "0xaaa")
	s.Require().NoError(err)
	s.False(added)
	_, err = s.store.AddPortfolioEntry(s.ctx, 1, "0xbbb")
	s.Require().NoError(err)

	refs, err := s.store.ListPortfolio(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal([]string{"0xaaa", "0xbbb"}, refs)

	s.Require().NoError(s.store.RemovePortfolioEntry(s.ctx, 1, "0xaaa"))
	s.Require().NoError(s.store.RemovePortfolioEntry(s.ctx, 1, "0xmissing"))
	refs, err = s.store.ListPortfolio(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal([]string{"0xbbb"}, refs)
}

func (s *StoreSuite) TestSuggestions() {
	s.Require().NoError(s.store.EnsureUser(s.ctx, 1))
	s.Require().NoError(s.store.AddSuggestion(s.ctx, 1, "dark mode please", day(2026, 10, 17)))
	n, err := s.store.CountSuggestions(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2026-10-17"))
	require.True(t, d.Valid)
	require.Equal(t, day(2026, 10, 17), d.Time)

	require.NoError(t, d.Scan([]byte("2026-10-18 00:00:00")))
	require.Equal(t, day(2026, 10, 18), d.Time)

	require.NoError(t, d.Scan(time.Date(2026, 10, 19, 13, 0, 0, 0, time.FixedZone("X", 3600))))
	require.Equal(t, day(2026, 10, 19), d.Time)

	require.NoError(t, d.Scan(nil))
	require.False(t, d.Valid)

	require.Error(t, d.Scan(42))

	v, err := Date{Time: day(2026, 1, 2), Valid: true}.Value()
	require.NoError(t, err)
	require.Equal(t, "2026-01-02", v)
}
