// Package model holds the cryptobot domain types shared by storage, providers and the engine.
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MaxRefLength bounds contract references, the length of a 0x prefixed EVM address.
const MaxRefLength = 42

// ErrCoinNotFound is returned by market data lookups for unknown references.
var ErrCoinNotFound = errors.New("coin not found")

// Quota is the per-user prediction bookkeeping. Zero dates mean "never".
type Quota struct {
	UserID             int64
	Count              int
	LastPredictionDate time.Time
	CheckinDate        time.Time
}

// CheckedInOn reports whether the user already checked in on day.
func (q Quota) CheckedInOn(day time.Time) bool {
	return !q.CheckinDate.IsZero() && SameDay(q.CheckinDate, day)
}

// PriceAlert is a user's threshold on a contract price. Removal only clears Active.
type PriceAlert struct {
	ID     int64           `db:"id"`
	UserID int64           `db:"user_id"`
	Ref    string          `db:"ref"`
	Price  decimal.Decimal `db:"price"`
	Active bool            `db:"active"`
}

// Snapshot is the market state of one contract at lookup time.
type Snapshot struct {
	Ref                string
	Name               string
	Symbol             string
	PriceUSD           decimal.Decimal
	MarketCapUSD       decimal.Decimal
	VolumeUSD          decimal.Decimal
	PriceChange24h     decimal.Decimal
	MarketCapChange24h decimal.Decimal
	UpdatedAt          time.Time
}

// PricePoint is one sample of a price history.
type PricePoint struct {
	At    time.Time
	Price decimal.Decimal
}

// Headline is a news item passed to the summarizer.
type Headline struct {
	Title       string
	Description string
}

// SameDay compares calendar dates without regard to clock or zone offset.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
