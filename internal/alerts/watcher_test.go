package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/cryptobot/internal/model"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListActiveAlerts(ctx context.Context) ([]model.PriceAlert, error) {
	args := m.Called()
	alerts, _ := args.Get(0).([]model.PriceAlert)
	return alerts, args.Error(1)
}

func (m *MockStore) DeactivateAlert(ctx context.Context, id int64) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

type scriptedPricer struct {
	prices  map[string][]string
	lookups map[string]int
}

func (p *scriptedPricer) Lookup(_ context.Context, ref string) (model.Snapshot, error) {
	seq, ok := p.prices[ref]
	if !ok {
		return model.Snapshot{}, model.ErrCoinNotFound
	}
	i := p.lookups[ref]
	p.lookups[ref]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return model.Snapshot{Ref: ref, PriceUSD: decimal.RequireFromString(seq[i])}, nil
}

type sentMessage struct {
	userID int64
	text   string
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCrossed(t *testing.T) {
	cases := []struct {
		prev, cur, threshold string
		want                 bool
	}{
		{"9", "10", "10", true},
		{"9", "11", "10", true},
		{"11", "10", "10", true},
		{"11", "9", "10", true},
		{"9", "9.5", "10", false},
		{"10", "10", "10", false},
		{"10", "11", "10", false},
		{"12", "11", "10", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Crossed(d(tc.prev), d(tc.cur), d(tc.threshold)),
			"%s -> %s over %s", tc.prev, tc.cur, tc.threshold)
	}
}

func TestRunOnceFiresOnCrossingAndDeactivates(t *testing.T) {
	store := new(MockStore)
	alerts := []model.PriceAlert{
		{ID: 1, UserID: 10, Ref: "0xlink", Price: d("15"), Active: true},
		{ID: 2, UserID: 11, Ref: "0xlink", Price: d("20"), Active: true},
	}
	store.On("ListActiveAlerts").Return(alerts, nil).Twice()
	store.On("DeactivateAlert", int64(1)).Return(true, nil).Once()

	pricer := &scriptedPricer{
		prices:  map[string][]string{"0xlink": {"14", "15.2"}},
		lookups: map[string]int{},
	}
	var sent []sentMessage
	w, err := New(Options{
		Store:  store,
		Pricer: pricer,
		Notifier: NotifierFunc(func(_ context.Context, userID int64, text string) error {
			sent = append(sent, sentMessage{userID, text})
			return nil
		}),
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Zero(t, w.RunOnce(ctx), "first observation only records the price")
	assert.Equal(t, 1, w.RunOnce(ctx))

	require.Len(t, sent, 1)
	assert.Equal(t, int64(10), sent[0].userID)
	assert.Contains(t, sent[0].text, "#1")
	assert.Equal(t, 2, pricer.lookups["0xlink"], "one lookup per ref per poll")
	store.AssertExpectations(t)
}

func TestRunOnceKeepsAlertWhenNotifyFails(t *testing.T) {
	store := new(MockStore)
	store.On("ListActiveAlerts").Return([]model.PriceAlert{
		{ID: 3, UserID: 10, Ref: "0xabc", Price: d("1"), Active: true},
	}, nil)

	pricer := &scriptedPricer{prices: map[string][]string{"0xabc": {"2", "0.5"}}, lookups: map[string]int{}}
	w, err := New(Options{
		Store:  store,
		Pricer: pricer,
		Notifier: NotifierFunc(func(context.Context, int64, string) error {
			return errors.New("bot blocked")
		}),
	})
	require.NoError(t, err)

	w.RunOnce(context.Background())
	assert.Zero(t, w.RunOnce(context.Background()))
	store.AssertNotCalled(t, "DeactivateAlert", mock.Anything)
}

func TestRunOnceSurvivesLookupAndStoreErrors(t *testing.T) {
	store := new(MockStore)
	store.On("ListActiveAlerts").Return(nil, errors.New("db down")).Once()
	store.On("ListActiveAlerts").Return([]model.PriceAlert{
		{ID: 4, UserID: 10, Ref: "0xmissing", Price: d("1"), Active: true},
	}, nil).Once()

	w, err := New(Options{
		Store:    store,
		Pricer:   &scriptedPricer{prices: map[string][]string{}, lookups: map[string]int{}},
		Notifier: NotifierFunc(func(context.Context, int64, string) error { return nil }),
	})
	require.NoError(t, err)

	assert.Zero(t, w.RunOnce(context.Background()))
	assert.Zero(t, w.RunOnce(context.Background()))
	store.AssertExpectations(t)
}

func TestRunDisabledWaitsForCancel(t *testing.T) {
	w, err := New(Options{
		Store:    new(MockStore),
		Pricer:   &scriptedPricer{},
		Notifier: NotifierFunc(func(context.Context, int64, string) error { return nil }),
		Interval: -1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}
