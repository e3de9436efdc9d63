package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format accepted by period queries.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date, use YYYY-MM-DD")

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Period is the half-open window [From, To).
type Period struct {
	From time.Time
	To   time.Time
}

// NewPeriod covers whole calendar days from start through end inclusive:
// [start 00:00, end+1 day 00:00).
func NewPeriod(start, end time.Time) Period {
	return Period{
		From: startOfDay(start),
		To:   startOfDay(end).AddDate(0, 0, 1),
	}
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
