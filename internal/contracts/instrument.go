package contracts

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the vendor wire format for calendar dates
const DateLayout = "20060102"

// ParseDate parses a YYYYMMDD date at UTC midnight
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYYMMDD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Truncate normalizes t to UTC midnight of its calendar day
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Instrument is one listed security from the vendor master list
type Instrument struct {
	TSCode        string    `json:"ts_code"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Area          string    `json:"area"`
	Industry      string    `json:"industry"`
	Market        string    `json:"market"`
	ListDate      null.Time `json:"list_date"`
	IsIndexMember bool      `json:"is_index_member"`
}

// WatchlistEntry is a user-managed instrument subscription
type WatchlistEntry struct {
	TSCode    string    `json:"ts_code"`
	GroupName string    `json:"group_name"`
	Weight    float64   `json:"weight"`
	AddedAt   time.Time `json:"added_at"`
}

// DefaultWatchlistGroup is used when an entry is added without a group
const DefaultWatchlistGroup = "default"
