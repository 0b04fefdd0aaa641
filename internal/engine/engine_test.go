package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/cryptobot/core/telegram/state"
	"github.com/m3rciful/cryptobot/internal/model"
)

const (
	adminID int64 = 751510914
	userID  int64 = 1001
)

type MockQuotaStore struct {
	mock.Mock
}

func (m *MockQuotaStore) EnsureUser(ctx context.Context, id int64) error {
	return m.Called(id).Error(0)
}

func (m *MockQuotaStore) GetQuota(ctx context.Context, id int64) (model.Quota, error) {
	args := m.Called(id)
	return args.Get(0).(model.Quota), args.Error(1)
}

func (m *MockQuotaStore) Checkin(ctx context.Context, id int64, today time.Time) (bool, error) {
	args := m.Called(id, today.Format("2006-01-02"))
	return args.Bool(0), args.Error(1)
}

func (m *MockQuotaStore) Increment(ctx context.Context, id int64, today time.Time) (int, error) {
	args := m.Called(id)
	return args.Int(0), args.Error(1)
}

func (m *MockQuotaStore) SetCount(ctx context.Context, id int64, n int) error {
	return m.Called(id, n).Error(0)
}

func (m *MockQuotaStore) ResetAll(ctx context.Context) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

type MockAlertStore struct {
	mock.Mock
}

func (m *MockAlertStore) AddAlert(ctx context.Context, id int64, ref string, price decimal.Decimal) (int64, error) {
	args := m.Called(id, ref, price.String())
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAlertStore) ListUserAlerts(ctx context.Context, id int64) ([]model.PriceAlert, error) {
	args := m.Called(id)
	alerts, _ := args.Get(0).([]model.PriceAlert)
	return alerts, args.Error(1)
}

func (m *MockAlertStore) DeactivateUserAlert(ctx context.Context, owner, id int64) (bool, error) {
	args := m.Called(owner, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertStore) AddPortfolioEntry(ctx context.Context, id int64, ref string) (bool, error) {
	args := m.Called(id, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertStore) RemovePortfolioEntry(ctx context.Context, id int64, ref string) error {
	return m.Called(id, ref).Error(0)
}

func (m *MockAlertStore) ListPortfolio(ctx context.Context, id int64) ([]string, error) {
	args := m.Called(id)
	refs, _ := args.Get(0).([]string)
	return refs, args.Error(1)
}

type fakeMarket struct {
	snaps   map[string]model.Snapshot
	history map[string][]model.PricePoint
	err     error
	lookups int
}

func (f *fakeMarket) Lookup(_ context.Context, ref string) (model.Snapshot, error) {
	f.lookups++
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	snap, ok := f.snaps[ref]
	if !ok {
		return model.Snapshot{}, model.ErrCoinNotFound
	}
	return snap, nil
}

func (f *fakeMarket) History(_ context.Context, ref string, _, _ time.Time) ([]model.PricePoint, error) {
	points, ok := f.history[ref]
	if !ok {
		return nil, model.ErrCoinNotFound
	}
	return points, nil
}

type fakePredictor struct{}

func (fakePredictor) Predict(_ context.Context, snap model.Snapshot) string {
	return "up only for " + snap.Symbol
}

type admitter struct{ allow bool }

func (a admitter) Admit(int64) bool { return a.allow }

type fixture struct {
	engine *Engine
	quota  *MockQuotaStore
	alerts *MockAlertStore
	market *fakeMarket
	slots  state.Manager
}

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		quota:  new(MockQuotaStore),
		alerts: new(MockAlertStore),
		market: &fakeMarket{snaps: map[string]model.Snapshot{
			"0xlink": {Ref: "0xlink", Symbol: "LINK", PriceUSD: decimal.RequireFromString("14.5")},
		}},
		slots: state.NewMemoryManager(),
	}
	eng, err := New(Options{
		Quota:           f.quota,
		Alerts:          f.alerts,
		Slots:           f.slots,
		Limiter:         admitter{allow: true},
		Market:          f.market,
		Predictor:       fakePredictor{},
		AdminID:         adminID,
		DailyLimit:      10,
		AdminDailyLimit: 40,
		AdminRaiseValue: 40,
		Now:             func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	f.engine = eng
	f.quota.On("EnsureUser", mock.Anything).Return(nil).Maybe()
	return f
}

func buttonActions(msg OutboundMessage) []Action {
	var out []Action
	for _, row := range msg.Buttons {
		for _, b := range row {
			out = append(out, b.Action)
		}
	}
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestHomeShowsAdminPanelOnlyToAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.engine.Dispatch(ctx, userID, ActionHome)
	require.NoError(t, err)
	assert.NotContains(t, buttonActions(msg), ActionAdminPanel)
	assert.Len(t, msg.Buttons, 6)

	msg, err = f.engine.Dispatch(ctx, adminID, ActionHome)
	require.NoError(t, err)
	assert.Contains(t, buttonActions(msg), ActionAdminPanel)
}

func TestPredictionCountMatchesConsumed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 3
	for i := 0; i < n; i++ {
		f.quota.On("GetQuota", userID).Return(model.Quota{UserID: userID, Count: i}, nil).Once()
		f.quota.On("Increment", userID).Return(i+1, nil).Once()

		msg, err := f.engine.Dispatch(ctx, userID, ActionPrediction)
		require.NoError(t, err)
		assert.Equal(t, SlotPrediction, f.slots.Peek(userID))
		assert.Contains(t, msg.Text, "Remaining predictions for today")

		msg, err = f.engine.Resolve(ctx, userID, "0xlink")
		require.NoError(t, err)
		assert.Contains(t, msg.Text, "up only for LINK")
		assert.Contains(t, msg.Text, "not financial advice")
		assert.False(t, f.slots.InProgress(userID))
	}
	f.quota.AssertNumberOfCalls(t, "Increment", n)
}

func TestPredictionCapBlocksSlot(t *testing.T) {
	f := newFixture(t)
	f.quota.On("GetQuota", userID).Return(model.Quota{Count: 10}, nil).Once()

	msg, err := f.engine.Dispatch(context.Background(), userID, ActionPrediction)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "daily limit of 10")
	assert.False(t, f.slots.InProgress(userID))
}

func TestZeroLimitDisablesPredictions(t *testing.T) {
	f := newFixture(t)
	f.engine.opts.DailyLimit = 0
	f.quota.On("GetQuota", userID).Return(model.Quota{}, nil).Once()

	msg, err := f.engine.Dispatch(context.Background(), userID, ActionPrediction)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "daily limit of 0")
	assert.False(t, f.slots.InProgress(userID))
}

func TestAdminGetsHigherCap(t *testing.T) {
	f := newFixture(t)
	f.quota.On("GetQuota", adminID).Return(model.Quota{Count: 10}, nil).Once()

	msg, err := f.engine.Dispatch(context.Background(), adminID, ActionPrediction)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Remaining predictions for today: 30")
	assert.Equal(t, SlotPrediction, f.slots.Peek(adminID))
}

func TestPredictionDebitsEvenWhenCoinMissing(t *testing.T) {
	f := newFixture(t)
	f.slots.Open(userID, SlotPrediction)
	f.quota.On("Increment", userID).Return(10, nil).Once()

	msg, err := f.engine.Resolve(context.Background(), userID, "0xunknown")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Coin not found")
	assert.Contains(t, msg.Text, "Remaining predictions for today: 0")
	f.quota.AssertExpectations(t)
}

func TestPredictionMarketErrorStillDebits(t *testing.T) {
	f := newFixture(t)
	f.market.err = errors.New("timeout")
	f.slots.Open(userID, SlotPrediction)
	f.quota.On("Increment", userID).Return(12, nil).Once()

	msg, err := f.engine.Resolve(context.Background(), userID, "0xlink")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Error fetching market data")
	// over-cap counts never report negative
	assert.Contains(t, msg.Text, "Remaining predictions for today: 0")
}

func TestCheckinOncePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.quota.On("GetQuota", userID).Return(model.Quota{}, nil).Once()
	f.quota.On("Checkin", userID, "2026-10-17").Return(true, nil).Once()
	msg, err := f.engine.Dispatch(ctx, userID, ActionDailyCheckin)
	require.NoError(t, err)
	assert.Equal(t, textCheckedIn, msg.Text)

	f.quota.On("GetQuota", userID).Return(model.Quota{CheckinDate: fixedNow}, nil).Once()
	msg, err = f.engine.Dispatch(ctx, userID, ActionDailyCheckin)
	require.NoError(t, err)
	assert.Equal(t, textAlreadyChecked, msg.Text)

	f.quota.AssertNumberOfCalls(t, "Checkin", 1)
}

func TestCheckinLostRaceIsAlreadyChecked(t *testing.T) {
	f := newFixture(t)
	f.quota.On("GetQuota", userID).Return(model.Quota{}, nil).Once()
	f.quota.On("Checkin", userID, "2026-10-17").Return(false, nil).Once()

	msg, err := f.engine.Dispatch(context.Background(), userID, ActionDailyCheckin)
	require.NoError(t, err)
	assert.Equal(t, textAlreadyChecked, msg.Text)
}

func TestCheckinUsesConfiguredZone(t *testing.T) {
	f := newFixture(t)
	loc := time.FixedZone("UTC+14", 14*3600)
	f.engine.opts.Location = loc
	f.quota.On("GetQuota", userID).Return(model.Quota{}, nil).Once()
	f.quota.On("Checkin", userID, "2026-10-17").Return(true, nil).Once()
	f.engine.opts.Now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	_, err := f.engine.Dispatch(context.Background(), userID, ActionDailyCheckin)
	require.NoError(t, err)
	f.quota.AssertExpectations(t)
}

func TestStoreFailureIsTransientAndOpensNoSlot(t *testing.T) {
	f := newFixture(t)
	f.quota.On("GetQuota", userID).Return(model.Quota{}, errors.New("db down")).Once()

	msg, err := f.engine.Dispatch(context.Background(), userID, ActionPrediction)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, textTryAgain, msg.Text)
	assert.False(t, f.slots.InProgress(userID))
}

func TestAlertAddSlotIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Dispatch(ctx, userID, ActionAddAlert)
	require.NoError(t, err)

	msg, err := f.engine.Resolve(ctx, userID, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, textInvalidAlert, msg.Text)

	msg, err = f.engine.Resolve(ctx, userID, "0xabc 500")
	require.NoError(t, err)
	assert.True(t, msg.Empty())
	f.alerts.AssertNotCalled(t, "AddAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestAlertAddValidation(t *testing.T) {
	cases := []string{
		"0xabc",
		"0xabc 1 2",
		"0xabc abc",
		"0xabc 0",
		"0xabc -5",
		strings.Repeat("a", 43) + " 1",
	}
	for _, text := range cases {
		t.Run(text, func(t *testing.T) {
			f := newFixture(t)
			f.slots.Open(userID, SlotAlertAdd)
			msg, err := f.engine.Resolve(context.Background(), userID, text)
			require.NoError(t, err)
			assert.Equal(t, textInvalidAlert, msg.Text)
			assert.False(t, f.slots.InProgress(userID))
		})
	}
}

func TestAlertAddStoresDecimal(t *testing.T) {
	f := newFixture(t)
	f.slots.Open(userID, SlotAlertAdd)
	f.alerts.On("AddAlert", userID, "0xabc", "0.00012").Return(int64(5), nil).Once()

	msg, err := f.engine.Resolve(context.Background(), userID, "  0xabc   0.00012 ")
	require.NoError(t, err)
	assert.Equal(t, "Price alert #5 set for 0xabc at $0.00012.", msg.Text)
	f.alerts.AssertExpectations(t)
}

func TestAlertRemoveIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.slots.Open(userID, SlotAlertRemove)
	f.alerts.On("DeactivateUserAlert", userID, int64(9)).Return(false, nil).Once()
	msg, err := f.engine.Resolve(ctx, userID, "9")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "No active price alert with ID 9")

	f.slots.Open(userID, SlotAlertRemove)
	f.alerts.On("DeactivateUserAlert", userID, int64(4)).Return(true, nil).Once()
	msg, err = f.engine.Resolve(ctx, userID, " 4 ")
	require.NoError(t, err)
	assert.Equal(t, "Price alert with ID 4 removed.", msg.Text)

	f.slots.Open(userID, SlotAlertRemove)
	msg, err = f.engine.Resolve(ctx, userID, "four")
	require.NoError(t, err)
	assert.Equal(t, textInvalidAlertID, msg.Text)
	assert.False(t, f.slots.InProgress(userID))
}

func TestPortfolioRefBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok42 := "0x" + strings.Repeat("a", 40)
	f.slots.Open(userID, SlotPortfolioAdd)
	f.alerts.On("AddPortfolioEntry", userID, ok42).Return(true, nil).Once()
	msg, err := f.engine.Resolve(ctx, userID, ok42)
	require.NoError(t, err)
	assert.Equal(t, "Added "+ok42+" to your portfolio.", msg.Text)

	f.slots.Open(userID, SlotPortfolioAdd)
	msg, err = f.engine.Resolve(ctx, userID, ok42+"b")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "too long")
	f.alerts.AssertNumberOfCalls(t, "AddPortfolioEntry", 1)

	f.slots.Open(userID, SlotPortfolioAdd)
	f.alerts.On("AddPortfolioEntry", userID, ok42).Return(false, nil).Once()
	msg, err = f.engine.Resolve(ctx, userID, ok42)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "already tracked")
}

func TestPortfolioRemoveIsSilentForMissing(t *testing.T) {
	f := newFixture(t)
	f.slots.Open(userID, SlotPortfolioRemove)
	f.alerts.On("RemovePortfolioEntry", userID, "0xnothere").Return(nil).Once()

	msg, err := f.engine.Resolve(context.Background(), userID, "0xnothere")
	require.NoError(t, err)
	assert.Equal(t, "Removed 0xnothere from your portfolio.", msg.Text)
}

func TestPortfolioOverview(t *testing.T) {
	f := newFixture(t)
	f.market.history = map[string][]model.PricePoint{
		"0xlink": {
			{At: fixedNow.Add(-24 * time.Hour), Price: decimal.NewFromInt(10)},
			{At: fixedNow, Price: decimal.RequireFromString("14.5")},
		},
	}
	f.alerts.On("ListPortfolio", userID).Return([]string{"0xlink", "0xgone"}, nil).Once()

	msg, err := f.engine.Dispatch(context.Background(), userID, ActionPortfolio)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "- 0xlink: $14.5")
	assert.Contains(t, msg.Text, "- 0xgone: Coin not found")
	assert.Contains(t, msg.Text, "Total Portfolio Value: $14.5")
	assert.Contains(t, msg.Text, "- 0xlink: $10 → $14.5 (45.00%)")
	assert.Contains(t, buttonActions(msg), ActionAddPortfolio)
}

func TestRateLimitedTextKeepsSlot(t *testing.T) {
	f := newFixture(t)
	f.engine.opts.Limiter = admitter{allow: false}
	f.slots.Open(userID, SlotPortfolioAdd)

	msg, err := f.engine.Resolve(context.Background(), userID, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, textPleaseWait, msg.Text)
	assert.Equal(t, SlotPortfolioAdd, f.slots.Peek(userID))
}

func TestTextWithoutSlotIsInert(t *testing.T) {
	f := newFixture(t)
	msg, err := f.engine.Resolve(context.Background(), userID, "hello")
	require.NoError(t, err)
	assert.True(t, msg.Empty())
}

func TestAdminActionsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, action := range []Action{ActionAdminPanel, ActionResetPredictions, ActionSetAdminPredictions} {
		msg, err := f.engine.Dispatch(ctx, userID, action)
		require.NoError(t, err)
		assert.Equal(t, textAdminOnly, msg.Text)
	}
	f.quota.AssertNotCalled(t, "ResetAll")
	f.quota.AssertNotCalled(t, "SetCount", mock.Anything, mock.Anything)

	f.quota.On("ResetAll").Return(int64(2), nil).Once()
	msg, err := f.engine.Dispatch(ctx, adminID, ActionResetPredictions)
	require.NoError(t, err)
	assert.Equal(t, textResetDone, msg.Text)

	f.quota.On("SetCount", adminID, 40).Return(nil).Once()
	msg, err = f.engine.Dispatch(ctx, adminID, ActionSetAdminPredictions)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "40")
	f.quota.AssertExpectations(t)
}

func TestUnknownAction(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Dispatch(context.Background(), userID, Action("launch_rockets"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

type stubNews struct {
	headlines []model.Headline
	err       error
}

func (s stubNews) Headlines(context.Context) ([]model.Headline, error) { return s.headlines, s.err }

type stubSummarizer struct{ err error }

func (s stubSummarizer) Summarize(_ context.Context, hs []model.Headline) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return " digest of " + hs[0].Title + " ", nil
}

func TestNewsFailuresBecomeText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.engine.Dispatch(ctx, userID, ActionDailyNews)
	require.NoError(t, err)
	assert.Equal(t, textNewsUnavailable, msg.Text)

	f.engine.opts.News = stubNews{err: errors.New("502")}
	f.engine.opts.Summarizer = stubSummarizer{}
	msg, err = f.engine.Dispatch(ctx, userID, ActionDailyNews)
	require.NoError(t, err)
	assert.Equal(t, textNewsUnavailable, msg.Text)

	f.engine.opts.News = stubNews{headlines: []model.Headline{{Title: "ETF approved"}}}
	f.engine.opts.Summarizer = stubSummarizer{err: errors.New("quota")}
	msg, err = f.engine.Dispatch(ctx, userID, ActionDailyNews)
	require.NoError(t, err)
	assert.Equal(t, textNewsSummaryFail, msg.Text)

	f.engine.opts.Summarizer = stubSummarizer{}
	msg, err = f.engine.Dispatch(ctx, userID, ActionDailyNews)
	require.NoError(t, err)
	assert.Equal(t, "digest of ETF approved", msg.Text)
}

type MockSuggestionStore struct {
	mock.Mock
}

func (m *MockSuggestionStore) AddSuggestion(ctx context.Context, id int64, body string, day time.Time) error {
	return m.Called(id, body).Error(0)
}

func TestSuggest(t *testing.T) {
	f := newFixture(t)
	store := new(MockSuggestionStore)
	f.engine.opts.Suggestions = store
	store.On("AddSuggestion", userID, "more charts").Return(nil).Once()

	msg, err := f.engine.Suggest(context.Background(), userID, "  more charts ")
	require.NoError(t, err)
	assert.Equal(t, textSuggestThanks, msg.Text)

	msg, err = f.engine.Suggest(context.Background(), userID, "   ")
	require.NoError(t, err)
	assert.Equal(t, textSuggestUsage, msg.Text)
	store.AssertExpectations(t)
}
