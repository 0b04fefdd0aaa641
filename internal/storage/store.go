// Package storage persists users, quotas, price alerts, portfolios and
// suggestions through sqlx. Queries are written with "?" placeholders and
// rebound for the active driver, so the same code serves postgres and sqlite.
package storage

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("storage: not found")

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// Store is the sqlx backed implementation of the quota, alert and suggestion stores.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Date scans DATE columns from postgres (time.Time) and TEXT columns from sqlite.
type Date struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = Date{Time: time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("storage: cannot scan %T into Date", src)
	}
}

func (d *Date) parse(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("storage: parse date %q: %w", s, err)
	}
	*d = Date{Time: t, Valid: true}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return formatDate(d.Time), nil
}
